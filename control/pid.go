package control

import "github.com/samber/lo"

// PID implements a discrete proportional-integral-derivative loop with a
// hard output clamp. The setpoint is supplied externally before each Step.
//
// The integrator accumulates without decay; anti-windup is handled by the
// owning stage, which clamps the command it integrates the output into.
type PID struct {
	cfg PIDConfig

	setpoint        float64
	integral        float64
	prevMeasurement float64
	initialized     bool
}

// NewPID creates a PID loop with the given gains and output limit.
func NewPID(cfg PIDConfig) *PID {
	return &PID{cfg: cfg}
}

// SetSetpoint updates the target value for subsequent Step calls.
func (pid *PID) SetSetpoint(setpoint float64) {
	pid.setpoint = setpoint
}

// Setpoint returns the current target value.
func (pid *PID) Setpoint() float64 {
	return pid.setpoint
}

// Reset clears the integrator and derivative memory.
func (pid *PID) Reset() {
	pid.integral = 0.0
	pid.prevMeasurement = 0.0
	pid.initialized = false
}

// Step computes the control output for one measurement sample.
//
// The derivative acts on the measurement rather than the error, so setpoint
// changes do not produce a derivative kick. The first call has no derivative
// term.
func (pid *PID) Step(measurement float64) float64 {
	err := pid.setpoint - measurement

	p := pid.cfg.Kp * err

	// The gain is folded into the accumulator so that Ki changes do not
	// rescale history.
	pid.integral += pid.cfg.Ki * err

	var d float64
	if pid.initialized {
		d = -pid.cfg.Kd * (measurement - pid.prevMeasurement)
	}
	pid.prevMeasurement = measurement
	pid.initialized = true

	limit := pid.cfg.OutputLimit
	return lo.Clamp(p+pid.integral+d, -limit, limit)
}

// Diagnostics returns the internal loop state for logging and tuning.
func (pid *PID) Diagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Setpoint: pid.setpoint,
		Integral: pid.integral,
	}
}

// PIDDiagnostics contains PID internal state for monitoring.
type PIDDiagnostics struct {
	Setpoint float64
	Integral float64
}
