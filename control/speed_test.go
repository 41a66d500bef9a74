package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

func newSpeedController(t *testing.T, cfg control.SpeedConfig) *control.SpeedController {
	t.Helper()
	physics := testPhysics(t, 1845, nil)
	return control.NewSpeedController(cfg, physics)
}

func TestSpeedSetTargetClampsToEnvelope(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)

	c.SetTarget(100, 99)
	assert.Equal(t, 50.0, c.TargetSpeed())
	assert.Equal(t, 3.0, c.TargetAccel())

	c.SetTarget(-100, -99)
	assert.Equal(t, -50.0, c.TargetSpeed())
	assert.Equal(t, -8.0, c.TargetAccel())
}

func TestSpeedStoppedTargetForcesFullBraking(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)

	// A near-zero speed request implies braking, whatever accel was asked.
	c.SetTarget(0, 2.0)
	assert.Equal(t, -8.0, c.TargetAccel())
}

func TestSpeedSetTargetIdempotent(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)

	c.SetTarget(12, 1.5)
	speed, accel := c.TargetSpeed(), c.TargetAccel()
	c.SetTarget(12, 1.5)
	assert.Equal(t, speed, c.TargetSpeed())
	assert.Equal(t, accel, c.TargetAccel())
}

func TestSpeedFullStop(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(0, 0)

	ctl := c.Step(0.0)
	assert.True(t, ctl.FullStop)
	assert.Equal(t, 0.0, ctl.SetpointAccel)
	assert.Equal(t, 0.0, ctl.DeltaAccel)
}

func TestSpeedStandStillUsesRawTarget(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(5, 1)

	// Standing (|v| < stand-still) but not stopping: the loop aims at the
	// raw target. First PID sample: p-term only.
	ctl := c.Step(0.05)
	require.False(t, ctl.FullStop)
	assert.InDelta(t, 0.05*(5-0.05), ctl.DeltaAccel, 1e-9)
	assert.InDelta(t, 0.2475, ctl.SetpointAccel, 1e-9)
}

func TestSpeedOppositeSignForcesZeroSetpoint(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(-3, 1)

	// Driving forward with a reverse target: the effective setpoint is 0,
	// not -3, so the loop commands deceleration toward zero.
	ctl := c.Step(2.0)
	require.False(t, ctl.FullStop)
	assert.InDelta(t, -0.1, ctl.DeltaAccel, 1e-9)
	assert.Less(t, ctl.SetpointAccel, 0.0)
}

func TestSpeedExplicitAccelBoundsOutput(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(50, 1)

	// Large speed error: the raw proportional term (2.49) is cut to the PID
	// output limit, and the explicit 1 m/s² request pins the carried
	// setpoint there even as the error persists.
	ctl := c.Step(0.2)
	assert.InDelta(t, 1.0, ctl.DeltaAccel, 1e-9)
	assert.Equal(t, 1.0, ctl.SetpointAccel)

	ctl = c.Step(0.2)
	assert.Equal(t, 1.0, ctl.SetpointAccel,
		"the explicit accel request must cap the carried setpoint")
}

func TestSpeedInertialAccelOpensEnvelope(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(50, 0)

	// Near-inertial request: each tick adds at most the PID output limit,
	// but the carried setpoint accumulates past it, up to the acceleration
	// envelope.
	ctl := c.Step(0.2)
	assert.InDelta(t, 1.0, ctl.SetpointAccel, 1e-9)

	ctl = c.Step(0.2)
	assert.InDelta(t, 2.0, ctl.SetpointAccel, 1e-9)

	ctl = c.Step(0.2)
	assert.InDelta(t, 3.0, ctl.SetpointAccel, 1e-9)

	ctl = c.Step(0.2)
	assert.Equal(t, 3.0, ctl.SetpointAccel,
		"the carried setpoint saturates at the acceleration envelope")
}

func TestSpeedSetpointIsCarriedAcrossTicks(t *testing.T) {
	c := newSpeedController(t, control.DefaultConfig().Speed)
	c.SetTarget(10, 0)

	first := c.Step(0.2)
	second := c.Step(0.2)
	assert.Greater(t, second.SetpointAccel, first.SetpointAccel,
		"constant error must keep ramping the carried setpoint")
	assert.InDelta(t, first.SetpointAccel+second.DeltaAccel, second.SetpointAccel, 1e-9)
}

func TestSpeedActivatorDebounce(t *testing.T) {
	cfg := control.DefaultConfig().Speed
	cfg.EnableActivator = true
	cfg.ActivatorThreshold = 2
	c := newSpeedController(t, cfg)
	c.SetTarget(10, 2)

	// Until the counter saturates, the stage passes the raw target accel
	// through and the PID stays out of the loop.
	ctl := c.Step(0.2)
	assert.Equal(t, 2.0, ctl.SetpointAccel)
	assert.Equal(t, 0.0, ctl.DeltaAccel)

	ctl = c.Step(0.2)
	assert.NotEqual(t, 0.0, ctl.DeltaAccel)
}

func TestSpeedActivatorIgnoresSmallRequests(t *testing.T) {
	cfg := control.DefaultConfig().Speed
	cfg.EnableActivator = true
	cfg.ActivatorThreshold = 1
	c := newSpeedController(t, cfg)

	// Below the trigger threshold the counter decrements and the loop
	// stays disabled.
	c.SetTarget(10, 0.5)
	for i := 0; i < 3; i++ {
		ctl := c.Step(0.2)
		assert.Equal(t, 0.5, ctl.SetpointAccel)
		assert.Equal(t, 0.0, ctl.DeltaAccel)
	}
}
