package sim

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

// Scenario defines a complete closed-loop drive: the simulated vehicle, the
// loop timing, and a sequence of timed driving targets.
type Scenario struct {
	Meta     ScenarioMeta   `yaml:"meta"`
	Timing   ScenarioTiming `yaml:"timing"`
	Vehicle  VehicleSpec    `yaml:"vehicle"`
	Segments []Segment      `yaml:"segments"`
}

// ScenarioMeta contains scenario metadata.
type ScenarioMeta struct {
	Name        string `yaml:"name"`
	Version     int    `yaml:"version"`
	Description string `yaml:"description"`
}

// ScenarioTiming defines the loop timing parameters.
type ScenarioTiming struct {
	DtS          float64 `yaml:"dt_s"`
	DurationS    float64 `yaml:"duration_s"`
	LogHz        float64 `yaml:"log_hz"`
	RealTimeMode bool    `yaml:"real_time_mode"`
}

// Segment holds the driving target for one time window. A negative T1 runs
// the segment to the end of the scenario.
type Segment struct {
	T0        float64 `yaml:"t0"`
	T1        float64 `yaml:"t1"`
	SteerDeg  float64 `yaml:"steer_deg"`
	SpeedMPS  float64 `yaml:"speed_mps"`
	AccelMPS2 float64 `yaml:"accel_mps2"`
	PitchDeg  float64 `yaml:"pitch_deg"`
	Comment   string  `yaml:"comment,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	var scen Scenario
	if err := yaml.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal scenario: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %g", scen.Timing.DurationS)
	}
	if scen.Timing.DtS <= 0 {
		return Scenario{}, fmt.Errorf("invalid dt_s: %g", scen.Timing.DtS)
	}
	if scen.Vehicle.MassKg <= 0 {
		scen.Vehicle = DefaultVehicleSpec()
	}

	return scen, nil
}

// EvalTarget evaluates the scenario at time t. Outside every segment the
// target is a full stop.
func (s *Scenario) EvalTarget(t float64) (control.TargetRequest, float64) {
	for _, seg := range s.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = s.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			target := control.TargetRequest{
				SteeringAngle: seg.SteerDeg * math.Pi / 180,
				Speed:         seg.SpeedMPS,
				Accel:         seg.AccelMPS2,
			}
			return target, seg.PitchDeg * math.Pi / 180
		}
	}
	return control.TargetRequest{}, 0
}
