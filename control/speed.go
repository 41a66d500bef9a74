package control

import (
	"math"

	"github.com/samber/lo"
)

// SpeedControl is the per-tick result of the speed stage.
type SpeedControl struct {
	// SetpointAccel is the bounded acceleration setpoint handed to the
	// acceleration stage.
	SetpointAccel float64
	// DeltaAccel is the raw PID output before integration, for diagnostics.
	DeltaAccel float64
	// FullStop reports that both the vehicle and the target are at rest.
	FullStop bool
}

// SpeedController closes a PID loop on vehicle speed and produces an
// acceleration setpoint. The setpoint is integrated: each tick adds a
// bounded PID delta to the previous value instead of recomputing it, so the
// commanded acceleration ramps rather than jumps.
type SpeedController struct {
	cfg      SpeedConfig
	speedPID *PID

	// Activator gating the loop behind consecutive large accel requests.
	// Only consulted when cfg.EnableActivator is set.
	activator *delayedActivator

	targetSpeed   float64
	targetAccel   float64
	setpointAccel float64

	maxSpeed float64
	maxAccel float64
	maxDecel float64
}

// NewSpeedController creates the speed stage from its config and the
// vehicle's physics envelope.
func NewSpeedController(cfg SpeedConfig, physics *VehiclePhysics) *SpeedController {
	return &SpeedController{
		cfg:       cfg,
		speedPID:  NewPID(cfg.PID),
		activator: newDelayedActivator(cfg.ActivatorThreshold),
		maxSpeed:  physics.MaxSpeed(),
		maxAccel:  physics.MaxAccel(),
		maxDecel:  physics.MaxDeceleration(),
	}
}

// TargetSpeed returns the stored (clamped) target speed.
func (c *SpeedController) TargetSpeed() float64 {
	return c.targetSpeed
}

// TargetAccel returns the stored (clamped) target acceleration.
func (c *SpeedController) TargetAccel() float64 {
	return c.targetAccel
}

// SetTarget stores a new speed and acceleration target, clamped to the
// vehicle envelope. A target speed below the full-stop threshold always
// implies full braking intent, so the acceleration is forced to the maximum
// deceleration regardless of what was requested.
func (c *SpeedController) SetTarget(targetSpeed, targetAccel float64) {
	targetSpeed = lo.Clamp(targetSpeed, -c.maxSpeed, c.maxSpeed)
	if math.Abs(targetSpeed) >= c.cfg.FullStopSpeedMPS {
		targetAccel = lo.Clamp(targetAccel, -c.maxDecel, c.maxAccel)
	} else {
		targetAccel = -c.maxDecel
	}

	c.targetSpeed = targetSpeed
	c.targetAccel = targetAccel
}

// Step advances the speed loop by one tick.
//
// The effective speed setpoint is zero at full stop, and also zero whenever
// the current and target speeds have opposite signs: a direction change must
// pass through zero rather than being commanded directly.
func (c *SpeedController) Step(currentSpeed float64) SpeedControl {
	isStanding := math.Abs(currentSpeed) < c.cfg.StandStillSpeedMPS
	isStopping := math.Abs(c.targetSpeed) < c.cfg.FullStopSpeedMPS
	isFullStop := isStanding && isStopping

	var setpointSpeed float64
	switch {
	case isStanding && isStopping:
		setpointSpeed = 0.0
	case isStanding:
		setpointSpeed = c.targetSpeed
	case math.Signbit(currentSpeed) != math.Signbit(c.targetSpeed):
		setpointSpeed = 0.0
	default:
		setpointSpeed = c.targetSpeed
	}

	targetAccelAbs := math.Abs(c.targetAccel)
	isInertial := targetAccelAbs < c.cfg.InertialAccelMPS2

	enabled := true
	if c.cfg.EnableActivator {
		if !isInertial && targetAccelAbs >= c.cfg.MinTriggerAccelMPS2 {
			enabled = c.activator.inc()
		} else {
			c.activator.dec()
			enabled = false
		}
	}

	if !enabled {
		c.setpointAccel = c.targetAccel
		return SpeedControl{SetpointAccel: c.targetAccel, DeltaAccel: 0.0, FullStop: isFullStop}
	}

	c.speedPID.SetSetpoint(math.Abs(setpointSpeed))
	delta := c.speedPID.Step(currentSpeed)

	// An explicit acceleration request bounds how hard the loop may push;
	// a near-inertial request opens the full envelope.
	var lower, upper float64
	if isInertial {
		lower, upper = -c.maxDecel, c.maxAccel
	} else {
		lower, upper = -targetAccelAbs, targetAccelAbs
	}

	prev := c.setpointAccel
	if isFullStop {
		prev = 0.0
	}
	c.setpointAccel = lo.Clamp(prev+delta, lower, upper)

	return SpeedControl{
		SetpointAccel: c.setpointAccel,
		DeltaAccel:    delta,
		FullStop:      isFullStop,
	}
}

// delayedActivator is a saturating up/down counter: inc reports true once
// the counter has reached its threshold, dec steps it back toward zero.
type delayedActivator struct {
	max int
	cur int
}

func newDelayedActivator(max int) *delayedActivator {
	return &delayedActivator{max: max}
}

func (a *delayedActivator) inc() bool {
	if a.cur < a.max {
		a.cur++
	}
	return a.cur == a.max
}

func (a *delayedActivator) dec() {
	if a.cur > 0 {
		a.cur--
	}
}
