package control

import (
	"fmt"
	"math"
)

const gravityMPS2 = 9.81

// VehicleParameters is the raw physics description supplied by the vehicle
// once per episode.
type VehicleParameters struct {
	MassKg float64
	// MaxWheelSteerRad lists the maximum steering angle of each steerable
	// wheel, in radians. May be empty; a default is substituted.
	MaxWheelSteerRad []float64
}

// VehiclePhysics derives static vehicle-dynamics quantities from the raw
// vehicle parameters. All fields are computed once at construction and never
// mutated; only DrivingImpedanceAcceleration is evaluated per tick.
type VehiclePhysics struct {
	cfg PhysicsConfig

	massKg                  float64
	engineBrakeForceN       float64
	layOffEngineAccelMPS2   float64
	weightForceN            float64
	rollingResistanceForceN float64
	maxSteeringAngleRad     float64
	maxSpeedMPS             float64
	maxAccelMPS2            float64
	maxDecelMPS2            float64
}

// NewVehiclePhysics builds the derived constants for one vehicle.
//
// An empty wheel set falls back to the configured default steering angle; a
// non-positive mass is a configuration error.
func NewVehiclePhysics(cfg PhysicsConfig, params VehicleParameters) (*VehiclePhysics, error) {
	if params.MassKg <= 0 {
		return nil, fmt.Errorf("vehicle mass must be positive, got %g kg", params.MassKg)
	}

	maxSteer := cfg.DefaultMaxSteerRad
	for i, angle := range params.MaxWheelSteerRad {
		if i == 0 || angle > maxSteer {
			maxSteer = angle
		}
	}
	if maxSteer <= 0 {
		return nil, fmt.Errorf("vehicle reports non-positive max steering angle %g rad", maxSteer)
	}

	weight := params.MassKg * gravityMPS2
	return &VehiclePhysics{
		cfg:                     cfg,
		massKg:                  params.MassKg,
		engineBrakeForceN:       cfg.EngineBrakeForceN,
		layOffEngineAccelMPS2:   -cfg.EngineBrakeForceN / params.MassKg,
		weightForceN:            weight,
		rollingResistanceForceN: cfg.RollingResistanceCoef * weight,
		maxSteeringAngleRad:     maxSteer,
		maxSpeedMPS:             cfg.MaxSpeedMPS,
		maxAccelMPS2:            cfg.MaxAccelMPS2,
		maxDecelMPS2:            cfg.MaxDecelMPS2,
	}, nil
}

// DrivingImpedanceAcceleration returns the deceleration the vehicle
// experiences from rolling resistance, aerodynamic drag and road slope at
// the given speed and pitch. This is the throttle level below which the
// vehicle slows down on its own, i.e. the throttle/brake split boundary.
func (p *VehiclePhysics) DrivingImpedanceAcceleration(speedMPS, pitchRadians float64, reverse bool) float64 {
	dragArea := p.cfg.AeroDragCoef * p.cfg.DragReferenceAreaM2
	aeroDragForce := 0.5 * dragArea * p.cfg.AirDensityKgM3 * speedMPS * speedMPS

	slopeForce := -gravityMPS2 * p.massKg * math.Sin(pitchRadians)
	if reverse {
		slopeForce = -slopeForce
	}

	return -(p.rollingResistanceForceN + aeroDragForce + slopeForce) / p.massKg
}

// LayOffEngineAcceleration returns the deceleration from engine drag alone
// when coasting off-throttle. Together with the driving impedance it defines
// the coast-vs-brake boundary.
func (p *VehiclePhysics) LayOffEngineAcceleration() float64 {
	return p.layOffEngineAccelMPS2
}

// MaxSteeringAngle returns the steering limit in radians.
func (p *VehiclePhysics) MaxSteeringAngle() float64 { return p.maxSteeringAngleRad }

// MaxSpeed returns the speed envelope in m/s.
func (p *VehiclePhysics) MaxSpeed() float64 { return p.maxSpeedMPS }

// MaxAccel returns the acceleration envelope in m/s².
func (p *VehiclePhysics) MaxAccel() float64 { return p.maxAccelMPS2 }

// MaxDeceleration returns the deceleration envelope in m/s², as a positive
// magnitude.
func (p *VehiclePhysics) MaxDeceleration() float64 { return p.maxDecelMPS2 }

// WeightForce returns m·g in newtons.
func (p *VehiclePhysics) WeightForce() float64 { return p.weightForceN }

// RollingResistanceForce returns the constant rolling-resistance force in
// newtons.
func (p *VehiclePhysics) RollingResistanceForce() float64 { return p.rollingResistanceForceN }
