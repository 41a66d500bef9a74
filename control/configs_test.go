package control_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NEWSLabNTU/carla-ackermann/control"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, control.DefaultConfig().Validate())
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	body := `
speed:
  pid:
    kp: 0.1
    ki: 0.0
    kd: 0.3
    output_limit: 2.0
  full_stop_speed_mps: 0.00001
  stand_still_speed_mps: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := control.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Speed.PID.Kp)
	assert.Equal(t, 0.2, cfg.Speed.StandStillSpeedMPS)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.05, cfg.Accel.PID.Kp)
	assert.Equal(t, 3.0, cfg.Physics.MaxAccelMPS2)
}

func TestLoadConfigRejectsBadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")
	body := `
speed:
  full_stop_speed_mps: 1.0
  stand_still_speed_mps: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := control.LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := control.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateDegenerateEnvelope(t *testing.T) {
	cfg := control.DefaultConfig()
	cfg.Physics.MaxDecelMPS2 = 0
	assert.Error(t, cfg.Validate())

	cfg = control.DefaultConfig()
	cfg.Physics.MaxSpeedMPS = -1
	assert.Error(t, cfg.Validate())

	cfg = control.DefaultConfig()
	cfg.Speed.EnableActivator = true
	cfg.Speed.ActivatorThreshold = 0
	assert.Error(t, cfg.Validate())
}
