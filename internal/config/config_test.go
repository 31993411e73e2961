package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mouse_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.NoError(t, cfg.validate())
	assert.Equal(t, 921600, cfg.SerialBaudRate)
	assert.Equal(t, 1000, cfg.TickFrequencyHz)
	assert.Equal(t, 1000, cfg.PWMPeriod)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, `
# robot tuning
MQTT_BROKER=tcp://robot:1883
COUNTS_PER_METER=60123.5
RIGHT_ENCODER_SIGN=-1
MAX_LINEAR_SPEED=0.6
CELL_DIMENSION=0.18

PUBLISH_INTERVAL=50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://robot:1883", cfg.MQTTBroker)
	assert.Equal(t, 60123.5, cfg.CountsPerMeter)
	assert.Equal(t, -1, cfg.RightEncoderSign)
	assert.Equal(t, 0.6, cfg.MaxLinearSpeed)
	assert.Equal(t, 50, cfg.PublishInterval)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, Default().WheelTrack, cfg.WheelTrack)
	assert.Equal(t, Default().SerialBaudRate, cfg.SerialBaudRate)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"unknown key", "NO_SUCH_KEY=1\n"},
		{"malformed line", "JUST_A_KEY\n"},
		{"bad sign", "LEFT_ENCODER_SIGN=2\n"},
		{"bad float", "COUNTS_PER_METER=abc\n"},
		{"negative limit", "MAX_LINEAR_SPEED=-1\n"},
		{"zero tick rate", "TICK_FREQUENCY_HZ=0\n"},
		{"bad battery channel", "BATTERY_ADC_CHANNEL=5\n"},
		{"speed above full duty", "MAX_LINEAR_SPEED=0.9\nFULL_DUTY_SPEED=0.8\n"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfigFile(t, tc.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "does_not_exist.txt"))
	assert.Error(t, err)
}

func TestValidate_SpeedAgainstFullDuty(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.MaxLinearSpeed = cfg.FullDutySpeed + 0.1
	assert.Error(t, cfg.validate())
}
