package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NEWSLabNTU/carla-ackermann/canbus"
	"github.com/NEWSLabNTU/carla-ackermann/control"
	"github.com/NEWSLabNTU/carla-ackermann/sim"
)

// RunnerConfig selects the scenario, controller tuning and outputs of one
// closed-loop run.
type RunnerConfig struct {
	ScenarioPath  string
	ConfigPath    string // empty uses the default tuning
	TelemetryPath string // empty disables the CSV telemetry file
	CANInterface  string // empty disables CAN transmission
	// CANListen drives the controller from vehicle-state frames received on
	// CANInterface instead of the built-in vehicle model.
	CANListen bool
}

// Runner steps the simulated vehicle and the controller in lockstep for the
// duration of a scenario.
type Runner struct {
	cfg  RunnerConfig
	log  *logrus.Entry
	scen sim.Scenario

	ctrl    *control.VehicleController
	vehicle *sim.Vehicle

	telemetryFile *os.File
	telemetry     *csv.Writer
	canWriter     canbus.Writer
	feedback      *stateFeed
}

// stateFeed tracks the latest vehicle-state frame seen on the bus. The
// receive loop runs in its own goroutine; the control loop samples whatever
// state is newest at each tick.
type stateFeed struct {
	reader canbus.Reader

	mu    sync.Mutex
	state canbus.State
}

func (f *stateFeed) run(ctx context.Context) {
	for {
		frame, err := f.reader.ReadFrame(ctx)
		if err != nil {
			return
		}
		state, err := canbus.UnmarshalState(frame)
		if err != nil {
			// Other traffic on the bus is expected; skip it.
			continue
		}
		f.mu.Lock()
		f.state = state
		f.mu.Unlock()
	}
}

func (f *stateFeed) latest() canbus.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// NewRunner loads the scenario and controller config and opens the outputs.
func NewRunner(ctx context.Context, cfg RunnerConfig, log *logrus.Entry) (*Runner, error) {
	scen, err := sim.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	ctrlCfg := control.DefaultConfig()
	if cfg.ConfigPath != "" {
		ctrlCfg, err = control.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load controller config: %w", err)
		}
	}

	ctrl, err := control.NewVehicleController(ctrlCfg, scen.Vehicle.Parameters())
	if err != nil {
		return nil, fmt.Errorf("build controller: %w", err)
	}

	r := &Runner{
		cfg:     cfg,
		log:     log,
		scen:    scen,
		ctrl:    ctrl,
		vehicle: sim.NewVehicle(scen.Vehicle),
	}

	if cfg.TelemetryPath != "" {
		f, err := os.Create(cfg.TelemetryPath)
		if err != nil {
			return nil, fmt.Errorf("create telemetry file: %w", err)
		}
		r.telemetryFile = f
		r.telemetry = csv.NewWriter(f)
		if err := r.telemetry.Write(telemetryHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write telemetry header: %w", err)
		}
	}

	if cfg.CANListen && cfg.CANInterface == "" {
		r.Close()
		return nil, fmt.Errorf("state feedback requires a CAN interface")
	}
	if cfg.CANInterface != "" {
		writer, err := canbus.NewSocketCANWriter(ctx, cfg.CANInterface)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.canWriter = writer

		if cfg.CANListen {
			reader, err := canbus.NewSocketCANReader(ctx, cfg.CANInterface)
			if err != nil {
				r.Close()
				return nil, err
			}
			r.feedback = &stateFeed{reader: reader}
		}
	}

	return r, nil
}

// Close releases the telemetry file and CAN socket.
func (r *Runner) Close() {
	if r.telemetry != nil {
		r.telemetry.Flush()
	}
	if r.telemetryFile != nil {
		_ = r.telemetryFile.Close()
	}
	if r.canWriter != nil {
		_ = r.canWriter.Close()
	}
	if r.feedback != nil {
		_ = r.feedback.reader.Close()
	}
}

var telemetryHeader = []string{
	"t_s", "speed_mps", "target_speed_mps", "pitch_rad", "status",
	"throttle", "brake", "steer", "reverse", "hand_brake",
	"setpoint_accel", "target_pedal", "delta_accel", "delta_pedal",
}

// Run executes the scenario to completion or until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	dt := r.scen.Timing.DtS
	steps := int(r.scen.Timing.DurationS / dt)

	logEvery := 1
	if r.scen.Timing.LogHz > 0 {
		if n := int(1 / (dt * r.scen.Timing.LogHz)); n > 1 {
			logEvery = n
		}
	}

	r.log.Infof("starting run: scenario=%q duration=%.2fs dt=%.3fs segments=%d can=%q",
		r.scen.Meta.Name, r.scen.Timing.DurationS, dt, len(r.scen.Segments), r.cfg.CANInterface)

	var ticker *time.Ticker
	if r.scen.Timing.RealTimeMode {
		ticker = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
	}

	if r.feedback != nil {
		go r.feedback.run(ctx)
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			r.log.Warn("context canceled; stopping run")
			return ctx.Err()
		default:
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		t := float64(i) * dt
		target, pitch := r.scen.EvalTarget(t)
		r.ctrl.SetTarget(target)

		speed := r.vehicle.Speed()
		if r.feedback != nil {
			state := r.feedback.latest()
			speed, pitch = state.SpeedMPS, state.PitchRad
		}

		// The controller consumes the speed magnitude; direction is carried
		// by the reverse flag it derives from the target.
		output, report, err := r.ctrl.Step(dt, math.Abs(speed), pitch)
		if err != nil {
			return fmt.Errorf("controller step at t=%.3f: %w", t, err)
		}
		if r.feedback == nil {
			r.vehicle.Apply(output, pitch, dt)
		}

		if r.canWriter != nil {
			frame := canbus.Command{
				Throttle:  output.Throttle,
				Brake:     output.Brake,
				Steer:     output.Steer,
				Reverse:   output.Reverse,
				HandBrake: output.HandBrake,
				Status:    uint8(report.Status),
			}.Marshal()
			if err := r.canWriter.WriteFrame(ctx, frame); err != nil {
				return fmt.Errorf("transmit command at t=%.3f: %w", t, err)
			}
		}

		if i%logEvery == 0 {
			if err := r.writeTelemetry(t, speed, target, pitch, output, report); err != nil {
				return err
			}
			r.log.Debugf("t=%.2f v=%.2f target=%.2f status=%s throttle=%.2f brake=%.2f pedal=%.3f",
				t, speed, target.Speed, report.Status, output.Throttle, output.Brake, report.TargetPedal)
		}
	}

	if r.telemetry != nil {
		r.telemetry.Flush()
		if err := r.telemetry.Error(); err != nil {
			return fmt.Errorf("flush telemetry: %w", err)
		}
	}
	if r.feedback == nil {
		r.log.Infof("run complete: distance=%.1fm final_speed=%.2fm/s", r.vehicle.Odometer(), r.vehicle.Speed())
	} else {
		r.log.Info("run complete")
	}
	return nil
}

func (r *Runner) writeTelemetry(t, speed float64, target control.TargetRequest, pitch float64, output control.Output, report control.Report) error {
	if r.telemetry == nil {
		return nil
	}
	row := []string{
		fmtF(t), fmtF(speed), fmtF(target.Speed), fmtF(pitch), report.Status.String(),
		fmtF(output.Throttle), fmtF(output.Brake), fmtF(output.Steer),
		strconv.Itoa(boolToInt(output.Reverse)), strconv.Itoa(boolToInt(output.HandBrake)),
		fmtF(report.SetpointAccel), fmtF(report.TargetPedal), fmtF(report.DeltaAccel), fmtF(report.DeltaPedal),
	}
	if err := r.telemetry.Write(row); err != nil {
		return fmt.Errorf("write telemetry row: %w", err)
	}
	return nil
}

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
