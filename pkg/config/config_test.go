package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.AuthPollInterval)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, time.Second, cfg.MotorPollInterval)
	assert.Zero(t, cfg.AuthorizationTimeout, "Authorization wait MUST be unbounded by default")
	assert.Zero(t, cfg.TelemetryMinInterval)
	assert.Equal(t, 256, cfg.EventBuffer)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg *Config)
		wantErr string
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides durations and format",
			yaml: "auth_poll_interval: 250ms\nsettle_delay: 2s\nauthorization_timeout: 1m\noutput_format: json\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 250*time.Millisecond, cfg.AuthPollInterval)
				assert.Equal(t, 2*time.Second, cfg.SettleDelay)
				assert.Equal(t, time.Minute, cfg.AuthorizationTimeout)
				assert.Equal(t, "json", cfg.OutputFormat)
				assert.Equal(t, time.Second, cfg.MotorPollInterval, "Unset keys MUST keep their defaults")
			},
		},
		{
			name:    "unknown key",
			yaml:    "poll_everything: true\n",
			wantErr: "poll_everything",
		},
		{
			name:    "bad log level",
			yaml:    "log_level: chatty\n",
			wantErr: "log_level",
		},
		{
			name:    "non-positive pacing",
			yaml:    "motor_poll_interval: 0s\n",
			wantErr: "motor_poll_interval",
		},
		{
			name:    "negative timeout",
			yaml:    "io_timeout: -1s\n",
			wantErr: "io_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(strings.NewReader(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lelo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nevent_buffer: 8\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.EventBuffer)
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger().GetLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_NewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			cfg := &Config{LogLevel: level}
			logger := cfg.NewLogger()

			expected, _ := logrus.ParseLevel(level)
			assert.Equal(t, expected, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TelemetryMinInterval = 100 * time.Millisecond
	cfg.AuthorizationTimeout = 30 * time.Second

	opts := cfg.SessionOptions()
	assert.Equal(t, cfg.AuthPollInterval, opts.AuthPollInterval)
	assert.Equal(t, cfg.SettleDelay, opts.SettleDelay)
	assert.Equal(t, cfg.MotorPollInterval, opts.MotorPollInterval)
	assert.Equal(t, 100*time.Millisecond, opts.TelemetryMinInterval)
	assert.Equal(t, 30*time.Second, opts.AuthorizationTimeout)
}
