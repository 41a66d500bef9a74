// Package sim provides a longitudinal point-mass vehicle model and timed
// drive scenarios for exercising the controller in a closed loop without a
// simulator connection.
package sim

import (
	"math"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

// VehicleSpec describes the simulated vehicle's actuation and resistance
// parameters.
type VehicleSpec struct {
	MassKg           float64 `yaml:"mass_kg"`
	MaxEngineForceN  float64 `yaml:"max_engine_force_n"`
	MaxBrakeForceN   float64 `yaml:"max_brake_force_n"`
	EngineBrakeN     float64 `yaml:"engine_brake_n"`
	RollingCoef      float64 `yaml:"rolling_coef"`
	AeroDragCoef     float64 `yaml:"aero_drag_coef"`
	DragAreaM2       float64 `yaml:"drag_area_m2"`
	AirDensityKgM3   float64 `yaml:"air_density_kg_m3"`
	MaxWheelSteerDeg float64 `yaml:"max_wheel_steer_deg"`
}

// DefaultVehicleSpec returns parameters roughly matching a mid-size sedan,
// consistent with the controller's physics defaults.
func DefaultVehicleSpec() VehicleSpec {
	return VehicleSpec{
		MassKg:           1845,
		MaxEngineForceN:  8000,
		MaxBrakeForceN:   16000,
		EngineBrakeN:     500,
		RollingCoef:      0.01,
		AeroDragCoef:     0.3,
		DragAreaM2:       2.37,
		AirDensityKgM3:   1.184,
		MaxWheelSteerDeg: 70,
	}
}

// Parameters converts the spec into the controller's construction input.
func (s VehicleSpec) Parameters() control.VehicleParameters {
	return control.VehicleParameters{
		MassKg:           s.MassKg,
		MaxWheelSteerRad: []float64{s.MaxWheelSteerDeg * math.Pi / 180},
	}
}

// Vehicle is a longitudinal point mass driven by throttle/brake commands.
// It models engine and brake forces, engine braking off-throttle, rolling
// resistance, aerodynamic drag and road slope.
type Vehicle struct {
	spec     VehicleSpec
	speedMPS float64
	odomM    float64
}

// NewVehicle creates a vehicle at rest.
func NewVehicle(spec VehicleSpec) *Vehicle {
	return &Vehicle{spec: spec}
}

// Speed returns the signed longitudinal speed in m/s.
func (v *Vehicle) Speed() float64 { return v.speedMPS }

// Odometer returns the distance traveled in meters.
func (v *Vehicle) Odometer() float64 { return v.odomM }

// Apply advances the vehicle by dt seconds under the given actuator command
// and road pitch.
func (v *Vehicle) Apply(cmd control.Output, pitchRad, dt float64) {
	spec := v.spec

	dir := 1.0
	if cmd.Reverse {
		dir = -1.0
	}

	// Traction and engine braking. Off-throttle the engine drags against
	// the direction of motion.
	engineForce := cmd.Throttle * spec.MaxEngineForceN * dir
	if cmd.Throttle == 0 && v.speedMPS != 0 {
		engineForce = -sign(v.speedMPS) * spec.EngineBrakeN
	}

	// Service brake and hand brake oppose motion; they cannot push the
	// vehicle backward through zero.
	brakeForce := 0.0
	if v.speedMPS != 0 {
		brakeForce = -sign(v.speedMPS) * cmd.Brake * spec.MaxBrakeForceN
		if cmd.HandBrake {
			brakeForce = -sign(v.speedMPS) * spec.MaxBrakeForceN
		}
	}

	rolling := 0.0
	if v.speedMPS != 0 {
		rolling = -sign(v.speedMPS) * spec.RollingCoef * spec.MassKg * 9.81
	}
	drag := -0.5 * spec.AeroDragCoef * spec.DragAreaM2 * spec.AirDensityKgM3 * v.speedMPS * math.Abs(v.speedMPS)
	slope := -spec.MassKg * 9.81 * math.Sin(pitchRad)

	accel := (engineForce + brakeForce + rolling + drag + slope) / spec.MassKg
	next := v.speedMPS + accel*dt

	// Braking and resistance stop at zero instead of reversing the vehicle.
	noTraction := cmd.Throttle == 0 || cmd.HandBrake
	if noTraction && v.speedMPS != 0 && sign(next) != sign(v.speedMPS) {
		next = 0
	}
	if cmd.HandBrake && math.Abs(next) < 1e-3 {
		next = 0
	}

	v.odomM += (v.speedMPS + next) / 2 * dt
	v.speedMPS = next
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
