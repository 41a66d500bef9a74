// Package control implements a cascaded drive-by-wire controller that turns
// a target steering angle, speed and acceleration into throttle, brake and
// steering commands for a simulated vehicle, once per control tick.
package control

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PIDConfig holds the gains and output clamp of one PID loop.
type PIDConfig struct {
	Kp          float64 `yaml:"kp" json:"kp"`
	Ki          float64 `yaml:"ki" json:"ki"`
	Kd          float64 `yaml:"kd" json:"kd"`
	OutputLimit float64 `yaml:"output_limit" json:"output_limit"`
}

// SpeedConfig holds the speed loop parameters.
type SpeedConfig struct {
	PID PIDConfig `yaml:"pid" json:"pid"`

	// FullStopSpeedMPS is the speed magnitude below which the vehicle is
	// treated as fully stopped.
	FullStopSpeedMPS float64 `yaml:"full_stop_speed_mps" json:"full_stop_speed_mps"`
	// StandStillSpeedMPS is the speed magnitude below which the vehicle is
	// treated as standing still. Must be larger than FullStopSpeedMPS.
	StandStillSpeedMPS float64 `yaml:"stand_still_speed_mps" json:"stand_still_speed_mps"`
	// InertialAccelMPS2 is the acceleration magnitude below which a target
	// acceleration counts as "no explicit request" and the loop may use the
	// full deceleration/acceleration envelope.
	InertialAccelMPS2 float64 `yaml:"inertial_accel_mps2" json:"inertial_accel_mps2"`
	// MinTriggerAccelMPS2 is the minimum target acceleration that counts
	// toward the debounce counter when the activator is enabled.
	MinTriggerAccelMPS2 float64 `yaml:"min_trigger_accel_mps2" json:"min_trigger_accel_mps2"`

	// EnableActivator gates the speed loop behind a debounce counter: the
	// loop only engages after ActivatorThreshold consecutive ticks with a
	// sufficiently large target acceleration. Off by default.
	EnableActivator    bool `yaml:"enable_activator" json:"enable_activator"`
	ActivatorThreshold int  `yaml:"activator_threshold" json:"activator_threshold"`
}

// AccelConfig holds the acceleration loop parameters.
type AccelConfig struct {
	PID PIDConfig `yaml:"pid" json:"pid"`
}

// PhysicsConfig holds the fixed vehicle-dynamics constants. They describe a
// typical passenger vehicle and are not load-bearing for correctness.
type PhysicsConfig struct {
	EngineBrakeForceN     float64 `yaml:"engine_brake_force_n" json:"engine_brake_force_n"`
	RollingResistanceCoef float64 `yaml:"rolling_resistance_coef" json:"rolling_resistance_coef"`
	AeroDragCoef          float64 `yaml:"aero_drag_coef" json:"aero_drag_coef"`
	DragReferenceAreaM2   float64 `yaml:"drag_reference_area_m2" json:"drag_reference_area_m2"`
	AirDensityKgM3        float64 `yaml:"air_density_kg_m3" json:"air_density_kg_m3"`

	DefaultMaxSteerRad float64 `yaml:"default_max_steer_rad" json:"default_max_steer_rad"`
	MaxSpeedMPS        float64 `yaml:"max_speed_mps" json:"max_speed_mps"`
	MaxAccelMPS2       float64 `yaml:"max_accel_mps2" json:"max_accel_mps2"`
	MaxDecelMPS2       float64 `yaml:"max_decel_mps2" json:"max_decel_mps2"`
}

// Config aggregates the full controller configuration.
type Config struct {
	Speed   SpeedConfig   `yaml:"speed" json:"speed"`
	Accel   AccelConfig   `yaml:"accel" json:"accel"`
	Physics PhysicsConfig `yaml:"physics" json:"physics"`
}

// DefaultConfig returns the stock tuning for a passenger vehicle.
func DefaultConfig() Config {
	return Config{
		Speed: SpeedConfig{
			PID:                 PIDConfig{Kp: 0.05, Ki: 0.0, Kd: 0.5, OutputLimit: 1.0},
			FullStopSpeedMPS:    1e-5,
			StandStillSpeedMPS:  0.1,
			InertialAccelMPS2:   5e-4,
			MinTriggerAccelMPS2: 1.0,
			EnableActivator:     false,
			ActivatorThreshold:  5,
		},
		Accel: AccelConfig{
			PID: PIDConfig{Kp: 0.05, Ki: 0.0, Kd: 0.05, OutputLimit: 1.0},
		},
		Physics: PhysicsConfig{
			EngineBrakeForceN:     500.0,
			RollingResistanceCoef: 0.01,
			AeroDragCoef:          0.3,
			DragReferenceAreaM2:   2.37,
			AirDensityKgM3:        1.184,
			DefaultMaxSteerRad:    70.0 * degToRad,
			MaxSpeedMPS:           180.0 / 3.6,
			MaxAccelMPS2:          3.0,
			MaxDecelMPS2:          8.0,
		},
	}
}

const degToRad = 0.017453292519943295

// LoadConfig reads a YAML config file on top of the defaults, so a partial
// file only overrides the keys it names.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for degenerate values that would break
// the per-tick arithmetic.
func (c Config) Validate() error {
	if c.Physics.MaxAccelMPS2 <= 0 || c.Physics.MaxDecelMPS2 <= 0 {
		return fmt.Errorf("invalid actuation envelope: max_accel=%g max_decel=%g",
			c.Physics.MaxAccelMPS2, c.Physics.MaxDecelMPS2)
	}
	if c.Physics.MaxSpeedMPS <= 0 {
		return fmt.Errorf("invalid max_speed_mps: %g", c.Physics.MaxSpeedMPS)
	}
	if c.Physics.DefaultMaxSteerRad <= 0 {
		return fmt.Errorf("invalid default_max_steer_rad: %g", c.Physics.DefaultMaxSteerRad)
	}
	if c.Speed.FullStopSpeedMPS < 0 || c.Speed.StandStillSpeedMPS <= c.Speed.FullStopSpeedMPS {
		return fmt.Errorf("speed thresholds must satisfy 0 <= full_stop < stand_still, got %g / %g",
			c.Speed.FullStopSpeedMPS, c.Speed.StandStillSpeedMPS)
	}
	if c.Speed.EnableActivator && c.Speed.ActivatorThreshold <= 0 {
		return fmt.Errorf("activator_threshold must be positive when the activator is enabled, got %d",
			c.Speed.ActivatorThreshold)
	}
	return nil
}
