package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/lelo/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("config", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestConfigureLogger(t *testing.T) {
	fileCfg := config.DefaultConfig()
	fileCfg.LogLevel = "warn"

	tests := []struct {
		name     string
		args     []string
		fromFile bool
		want     logrus.Level
	}{
		{name: "silent by default", want: logrus.PanicLevel},
		{name: "log level flag", args: []string{"--log-level", "info"}, want: logrus.InfoLevel},
		{name: "verbose", args: []string{"--verbose"}, want: logrus.DebugLevel},
		{name: "flag beats verbose", args: []string{"--verbose", "--log-level", "error"}, want: logrus.ErrorLevel},
		{name: "config file level", fromFile: true, want: logrus.WarnLevel},
		{name: "flag beats config file", args: []string{"--log-level", "debug"}, fromFile: true, want: logrus.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := configureLogger(newFlagCommand(t, tt.args...), fileCfg, tt.fromFile)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestConfigureLogger_InvalidLevel(t *testing.T) {
	_, err := configureLogger(newFlagCommand(t, "--log-level", "trace"), config.DefaultConfig(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level: trace")
}

func TestSetup_LoadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lelo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nmotor_poll_interval: 250ms\n"), 0o600))

	cfg, logger, err := setup(newFlagCommand(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Equal(t, "250ms", cfg.MotorPollInterval.String())
}

func TestSetup_MissingConfigFile(t *testing.T) {
	_, _, err := setup(newFlagCommand(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
}
