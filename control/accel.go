package control

import "github.com/samber/lo"

// AccelControl is the per-tick result of the acceleration stage.
type AccelControl struct {
	// PedalTarget is the signed, unitless actuation magnitude in
	// [-maxPedal, maxPedal]; positive pushes toward throttle, negative
	// toward brake.
	PedalTarget float64
	// PedalDelta is the raw PID output before integration, for diagnostics.
	PedalDelta float64
}

// AccelController closes a PID loop on the measured (differentiated)
// acceleration and produces a pedal target. Like the speed stage, the pedal
// is carried forward and nudged by a bounded delta each tick, so it behaves
// like a rate-limited actuator instead of jumping with the setpoint.
type AccelController struct {
	cfg      AccelConfig
	accelPID *PID

	targetAccel float64
	targetPedal float64
	maxPedal    float64
}

// NewAccelController creates the acceleration stage. The pedal bound is the
// smaller of the acceleration and deceleration envelopes so the same scale
// serves both throttle and brake.
func NewAccelController(cfg AccelConfig, physics *VehiclePhysics) *AccelController {
	maxPedal := physics.MaxAccel()
	if physics.MaxDeceleration() < maxPedal {
		maxPedal = physics.MaxDeceleration()
	}
	return &AccelController{
		cfg:      cfg,
		accelPID: NewPID(cfg.PID),
		maxPedal: maxPedal,
	}
}

// SetTargetAccel stores the acceleration setpoint for the next Step.
func (c *AccelController) SetTargetAccel(targetAccel float64) {
	c.targetAccel = targetAccel
}

// ResetTargetPedal zeroes the carried pedal value. The orchestrator calls
// this when a full stop is detected so a stale command cannot leak across
// the stop.
func (c *AccelController) ResetTargetPedal() {
	c.targetPedal = 0.0
}

// Step advances the acceleration loop by one tick.
func (c *AccelController) Step(currentAccel float64) AccelControl {
	c.accelPID.SetSetpoint(c.targetAccel)
	delta := c.accelPID.Step(currentAccel)

	c.targetPedal = lo.Clamp(c.targetPedal+delta, -c.maxPedal, c.maxPedal)

	return AccelControl{
		PedalTarget: c.targetPedal,
		PedalDelta:  delta,
	}
}

// MaxPedal returns the pedal clamp magnitude.
func (c *AccelController) MaxPedal() float64 {
	return c.maxPedal
}
