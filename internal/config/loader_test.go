package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roadmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_SparseFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `
robot:
  id: robot_042
mission:
  max_duration: 2m
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "robot_042", cfg.Robot.ID)
	assert.Equal(t, 2*time.Minute, cfg.Mission.MaxDuration)

	// Everything the file does not mention stays at the default.
	def := Default()
	assert.Equal(t, def.MQTT.Broker, cfg.MQTT.Broker)
	assert.Equal(t, def.Actuator.CommandTimeout, cfg.Actuator.CommandTimeout)
	assert.Equal(t, def.Safety.MinFixTier, cfg.Safety.MinFixTier)
	assert.Equal(t, def.Navigation.ArrivalToleranceMeters, cfg.Navigation.ArrivalToleranceMeters)
}

func TestLoad_DurationStringsDecode(t *testing.T) {
	path := writeConfigFile(t, `
actuator:
  connect_timeout: 15s
  command_timeout: 45s
  stop_timeout: 500ms
telemetry:
  report_interval: 30s
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Actuator.ConnectTimeout)
	assert.Equal(t, 45*time.Second, cfg.Actuator.CommandTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Actuator.StopTimeout)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ReportInterval)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("ROADMARK_BROKER", "mqtt.fleet.internal")
	t.Setenv("ROADMARK_MQTT_PASS", "hunter2")

	path := writeConfigFile(t, `
mqtt:
  broker: ${ROADMARK_BROKER}
  username: roadmark
  password: ${ROADMARK_MQTT_PASS}
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mqtt.fleet.internal", cfg.MQTT.Broker)
	assert.Equal(t, "hunter2", cfg.MQTT.Password)
}

func TestLoad_UnsetEnvExpandsEmpty(t *testing.T) {
	path := writeConfigFile(t, `
mqtt:
  password: ${ROADMARK_DEFINITELY_UNSET}
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.MQTT.Password)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(NewValidator()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "robot: [unclosed")

	_, err := NewLoader(NewValidator()).Load(path)
	require.Error(t, err)
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown fix tier",
			yaml:    "safety:\n  min_fix_tier: 4d\n",
			wantErr: "oneof",
		},
		{
			name:    "stop timeout slower than command timeout",
			yaml:    "actuator:\n  stop_timeout: 30s\n  command_timeout: 30s\n",
			wantErr: "stop_timeout",
		},
		{
			name:    "safety interval shorter than tick interval",
			yaml:    "daemon:\n  tick_interval: 2s\n  safety_interval: 1s\n",
			wantErr: "safety_interval",
		},
		{
			name:    "bad logging level",
			yaml:    "logging:\n  level: loud\n",
			wantErr: "Logging.Level",
		},
		{
			name:    "battery floor over 100",
			yaml:    "safety:\n  min_power_percent: 150\n",
			wantErr: "MinPowerPercent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.yaml)
			_, err := NewLoader(NewValidator()).Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_RequiresPeerDiscovery(t *testing.T) {
	cfg := Default()
	cfg.Actuator.PeerAddress = ""
	cfg.Actuator.CandidateAddresses = nil
	cfg.Actuator.Interface = ""

	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer discovery")
}

func TestValidate_NilConfig(t *testing.T) {
	require.Error(t, NewValidator().Validate(nil))
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, NewValidator().Validate(Default()))
}

func TestCheckPolicy_IsValid(t *testing.T) {
	assert.True(t, FailOpen.IsValid())
	assert.True(t, FailClosed.IsValid())
	assert.False(t, CheckPolicy("fail_sideways").IsValid())
}
