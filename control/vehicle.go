package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// ErrInvalidTimeDelta is returned by Step when the elapsed time since the
// previous tick is zero or negative, which would make the acceleration
// estimate undefined.
var ErrInvalidTimeDelta = errors.New("time delta must be positive")

// TargetRequest is the high-level driving intent set by the caller.
type TargetRequest struct {
	// SteeringAngle in radians, positive left.
	SteeringAngle float64
	// Speed in m/s; negative drives in reverse.
	Speed float64
	// Accel in m/s²; a magnitude bound on how hard to reach the speed.
	Accel float64
}

// Output is the actuator command produced each tick.
type Output struct {
	Throttle  float64 // [0, 1]
	Brake     float64 // [0, 1]
	Steer     float64 // [-1, 1]
	Reverse   bool
	HandBrake bool
}

// Status is the driving regime classified for the current tick. It is
// re-derived every tick from continuous quantities and carries no memory.
type Status int

const (
	StatusFullStop Status = iota
	StatusAccelerating
	StatusCoasting
	StatusBraking
)

func (s Status) String() string {
	switch s {
	case StatusFullStop:
		return "full_stop"
	case StatusAccelerating:
		return "accelerating"
	case StatusCoasting:
		return "coasting"
	case StatusBraking:
		return "braking"
	default:
		return "unknown"
	}
}

// Report carries the per-tick diagnostics from both inner loops. It is
// meant for logging and tuning and is never consumed by the control law.
type Report struct {
	Status        Status
	SetpointAccel float64
	TargetPedal   float64
	DeltaAccel    float64
	DeltaPedal    float64
}

// Measurement is the motion estimate updated at the start of each tick. The
// acceleration is differentiated from successive speed samples; both speed
// and acceleration are forced to zero near a full stop to suppress
// numerical noise from a nearly stationary vehicle.
type Measurement struct {
	TimeSec  float64
	SpeedMPS float64
	AccelMPS float64
}

func (m *Measurement) update(timeDeltaSec, currentSpeed, fullStopSpeedMPS float64) {
	currentAccel := (currentSpeed - m.SpeedMPS) / timeDeltaSec
	m.TimeSec += timeDeltaSec

	if math.Abs(currentSpeed) < fullStopSpeedMPS {
		m.SpeedMPS = 0.0
		m.AccelMPS = 0.0
	} else {
		m.SpeedMPS = currentSpeed
		m.AccelMPS = currentAccel
	}
}

// VehicleController runs the cascaded steering/speed/acceleration pipeline
// once per tick and maps the resulting pedal target onto throttle and brake.
//
// It is a pure state-transition function of its inputs: no I/O, no clock,
// no goroutines. One controller drives exactly one vehicle; it is not safe
// for concurrent use without external synchronization.
type VehicleController struct {
	cfg         Config
	measurement Measurement
	physics     *VehiclePhysics
	speedCtrl   *SpeedController
	accelCtrl   *AccelController
	steerCtrl   *SteerController
}

// NewVehicleController builds a controller for one vehicle. Configuration
// errors (degenerate envelope, non-positive mass) surface here, before any
// Step call.
func NewVehicleController(cfg Config, params VehicleParameters) (*VehicleController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("controller config: %w", err)
	}
	physics, err := NewVehiclePhysics(cfg.Physics, params)
	if err != nil {
		return nil, fmt.Errorf("vehicle physics: %w", err)
	}

	return &VehicleController{
		cfg:       cfg,
		physics:   physics,
		speedCtrl: NewSpeedController(cfg.Speed, physics),
		accelCtrl: NewAccelController(cfg.Accel, physics),
		steerCtrl: NewSteerController(physics.MaxSteeringAngle()),
	}, nil
}

// Physics exposes the derived vehicle constants.
func (v *VehicleController) Physics() *VehiclePhysics {
	return v.physics
}

// Measurement returns the latest motion estimate.
func (v *VehicleController) Measurement() Measurement {
	return v.measurement
}

// SetTarget updates the driving intent. Each component is clamped to the
// vehicle envelope independently; calling it again with the same request is
// a no-op.
func (v *VehicleController) SetTarget(target TargetRequest) {
	v.steerCtrl.SetTarget(target.SteeringAngle)
	v.speedCtrl.SetTarget(target.Speed, target.Accel)
}

// Step advances the controller by one tick and returns the actuator command
// together with a diagnostic report.
//
// Stages run in a fixed order: the measurement update feeds the speed loop,
// whose setpoint acceleration feeds the acceleration loop, whose pedal
// target is split into throttle or brake against the physics-derived
// borders. timeDeltaSec must be positive.
func (v *VehicleController) Step(timeDeltaSec, currentSpeed, pitchRadians float64) (Output, Report, error) {
	if timeDeltaSec <= 0 {
		return Output{}, Report{}, fmt.Errorf("%w: %g s", ErrInvalidTimeDelta, timeDeltaSec)
	}

	v.measurement.update(timeDeltaSec, currentSpeed, v.cfg.Speed.FullStopSpeedMPS)

	steer := v.steerCtrl.Ratio()

	speedCtl := v.speedCtrl.Step(currentSpeed)

	v.accelCtrl.SetTargetAccel(speedCtl.SetpointAccel)
	if speedCtl.FullStop {
		v.accelCtrl.ResetTargetPedal()
	}
	accelCtl := v.accelCtrl.Step(v.measurement.AccelMPS)

	reverse := v.speedCtrl.TargetSpeed() < 0
	throttleLowerBorder := v.physics.DrivingImpedanceAcceleration(v.measurement.SpeedMPS, pitchRadians, reverse)
	brakeUpperBorder := throttleLowerBorder + v.physics.LayOffEngineAcceleration()

	targetPedal := accelCtl.PedalTarget
	maxPedal := v.accelCtrl.MaxPedal()

	var status Status
	var output Output
	switch {
	case speedCtl.FullStop:
		status = StatusFullStop
		output = Output{
			Throttle:  0.0,
			Brake:     1.0,
			Steer:     steer,
			Reverse:   reverse,
			HandBrake: true,
		}
	case targetPedal > throttleLowerBorder:
		status = StatusAccelerating
		output = Output{
			Throttle: lo.Clamp((targetPedal-throttleLowerBorder)/maxPedal, 0.0, 1.0),
			Brake:    0.0,
			Steer:    steer,
			Reverse:  reverse,
		}
	case targetPedal > brakeUpperBorder:
		// Dead band between "needs throttle" and "needs brake".
		status = StatusCoasting
		output = Output{
			Throttle: 0.0,
			Brake:    0.0,
			Steer:    steer,
			Reverse:  reverse,
		}
	default:
		status = StatusBraking
		output = Output{
			Throttle: 0.0,
			Brake:    lo.Clamp((brakeUpperBorder-targetPedal)/maxPedal, 0.0, 1.0),
			Steer:    steer,
			Reverse:  reverse,
		}
	}

	report := Report{
		Status:        status,
		SetpointAccel: speedCtl.SetpointAccel,
		TargetPedal:   targetPedal,
		DeltaAccel:    speedCtl.DeltaAccel,
		DeltaPedal:    accelCtl.PedalDelta,
	}
	return output, report, nil
}
