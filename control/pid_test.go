package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

func TestPIDProportional(t *testing.T) {
	pid := control.NewPID(control.PIDConfig{Kp: 0.05, OutputLimit: 1.0})
	pid.SetSetpoint(10.0)

	out := pid.Step(0.0)
	assert.InDelta(t, 0.5, out, 1e-9)
}

func TestPIDOutputClamp(t *testing.T) {
	pid := control.NewPID(control.PIDConfig{Kp: 1.0, OutputLimit: 1.0})
	pid.SetSetpoint(100.0)
	assert.Equal(t, 1.0, pid.Step(0.0))

	pid.SetSetpoint(-100.0)
	assert.Equal(t, -1.0, pid.Step(0.0))
}

func TestPIDIntegralAccumulates(t *testing.T) {
	pid := control.NewPID(control.PIDConfig{Ki: 0.1, OutputLimit: 10.0})
	pid.SetSetpoint(1.0)

	assert.InDelta(t, 0.1, pid.Step(0.0), 1e-9)
	assert.InDelta(t, 0.2, pid.Step(0.0), 1e-9)
	assert.InDelta(t, 0.3, pid.Step(0.0), 1e-9)
}

func TestPIDDerivativeOnMeasurement(t *testing.T) {
	pid := control.NewPID(control.PIDConfig{Kd: 1.0, OutputLimit: 10.0})
	pid.SetSetpoint(0.0)

	// No derivative on the first sample.
	assert.Equal(t, 0.0, pid.Step(0.0))
	// Rising measurement pushes the output down.
	assert.InDelta(t, -2.0, pid.Step(2.0), 1e-9)

	// A setpoint change alone produces no derivative kick.
	pid.SetSetpoint(5.0)
	assert.InDelta(t, 0.0, pid.Step(2.0), 1e-9)
}

func TestPIDReset(t *testing.T) {
	pid := control.NewPID(control.PIDConfig{Ki: 0.1, Kd: 1.0, OutputLimit: 10.0})
	pid.SetSetpoint(1.0)
	pid.Step(0.0)
	pid.Step(0.5)

	pid.Reset()
	assert.Equal(t, 0.0, pid.Diagnostics().Integral)
	// First step after reset has no derivative term again.
	assert.InDelta(t, 0.1, pid.Step(0.0), 1e-9)
}
