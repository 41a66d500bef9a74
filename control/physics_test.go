package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

func testPhysics(t *testing.T, massKg float64, wheels []float64) *control.VehiclePhysics {
	t.Helper()
	physics, err := control.NewVehiclePhysics(control.DefaultConfig().Physics, control.VehicleParameters{
		MassKg:           massKg,
		MaxWheelSteerRad: wheels,
	})
	require.NoError(t, err)
	return physics
}

func TestPhysicsRejectsNonPositiveMass(t *testing.T) {
	_, err := control.NewVehiclePhysics(control.DefaultConfig().Physics, control.VehicleParameters{MassKg: 0})
	assert.Error(t, err)

	_, err = control.NewVehiclePhysics(control.DefaultConfig().Physics, control.VehicleParameters{MassKg: -100})
	assert.Error(t, err)
}

func TestPhysicsSteeringAngleFallback(t *testing.T) {
	physics := testPhysics(t, 1000, nil)
	// 70 degrees.
	assert.InDelta(t, 1.2217, physics.MaxSteeringAngle(), 1e-3)
}

func TestPhysicsSteeringAngleIsWheelMax(t *testing.T) {
	physics := testPhysics(t, 1000, []float64{0.5, 1.0, 0.7})
	assert.Equal(t, 1.0, physics.MaxSteeringAngle())
}

func TestPhysicsDerivedConstants(t *testing.T) {
	physics := testPhysics(t, 1000, nil)

	assert.InDelta(t, -0.5, physics.LayOffEngineAcceleration(), 1e-9)
	assert.InDelta(t, 9810.0, physics.WeightForce(), 1e-9)
	assert.InDelta(t, 98.1, physics.RollingResistanceForce(), 1e-9)
	assert.Equal(t, 50.0, physics.MaxSpeed())
	assert.Equal(t, 3.0, physics.MaxAccel())
	assert.Equal(t, 8.0, physics.MaxDeceleration())
}

func TestDrivingImpedanceAtRestOnFlat(t *testing.T) {
	physics := testPhysics(t, 1000, nil)

	// Only rolling resistance: -(0.01 * 1000 * 9.81) / 1000.
	got := physics.DrivingImpedanceAcceleration(0, 0, false)
	assert.InDelta(t, -0.0981, got, 1e-9)
}

func TestDrivingImpedanceGrowsWithSpeed(t *testing.T) {
	physics := testPhysics(t, 1000, nil)

	slow := physics.DrivingImpedanceAcceleration(5, 0, false)
	fast := physics.DrivingImpedanceAcceleration(20, 0, false)
	assert.Less(t, fast, slow, "drag must increase the impedance with speed")

	// Quadratic drag term: 0.5 * 0.3 * 2.37 * 1.184 * v².
	got := physics.DrivingImpedanceAcceleration(10, 0, false)
	assert.InDelta(t, -(98.1+42.0912)/1000.0, got, 1e-6)
}

func TestDrivingImpedanceSlopeSign(t *testing.T) {
	physics := testPhysics(t, 1000, nil)

	uphill := physics.DrivingImpedanceAcceleration(0, 0.1, false)
	downhill := physics.DrivingImpedanceAcceleration(0, -0.1, false)
	flat := physics.DrivingImpedanceAcceleration(0, 0, false)
	assert.NotEqual(t, uphill, downhill)
	assert.Less(t, downhill, flat)
	assert.Greater(t, uphill, flat)

	// Reversing flips the slope contribution.
	assert.InDelta(t, downhill, physics.DrivingImpedanceAcceleration(0, 0.1, true), 1e-12)
	assert.InDelta(t, uphill, physics.DrivingImpedanceAcceleration(0, -0.1, true), 1e-12)
}
