// Command simdrive runs the vehicle controller against the built-in
// longitudinal vehicle model over a YAML scenario, writing CSV telemetry
// and optionally transmitting each actuator command on a CAN bus.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/NEWSLabNTU/carla-ackermann/utils"
)

func main() {
	var (
		scenPath  = flag.String("scenario", "config/scenario_stop_and_go.yaml", "scenario YAML file")
		cfgPath   = flag.String("config", "", "controller config YAML file (default tuning when empty)")
		telemetry = flag.String("telemetry", "simdrive.csv", "CSV telemetry output path (empty disables)")
		canIface  = flag.String("can", "", "SocketCAN interface to transmit commands on (e.g. vcan0; empty disables)")
		canListen = flag.Bool("can.listen", false, "drive the controller from vehicle-state frames on the CAN interface instead of the built-in model")
		logLevel  = flag.String("log.level", "info", "trace|debug|info|warn|error|critical")
		logFile   = flag.String("log.file", "", "mirror log output to this file")
	)
	flag.Parse()

	closeLog, err := utils.SetupLogger(*logLevel, *logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()
	log := logrus.WithField("module", "simdrive")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := RunnerConfig{
		ScenarioPath:  *scenPath,
		ConfigPath:    *cfgPath,
		TelemetryPath: *telemetry,
		CANInterface:  *canIface,
		CANListen:     *canListen,
	}

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer runner.Close()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("run failed: %v", err)
	}
}
