// Package config holds the CLI configuration and its YAML file format.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/session"
	"gopkg.in/yaml.v3"
)

// OutputFormats are the accepted values of output_format.
var OutputFormats = []string{"text", "json"}

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"text"`

	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	IOTimeout      time.Duration `yaml:"io_timeout" default:"10s"`

	AuthPollInterval     time.Duration `yaml:"auth_poll_interval" default:"1s"`
	SettleDelay          time.Duration `yaml:"settle_delay" default:"1s"`
	MotorPollInterval    time.Duration `yaml:"motor_poll_interval" default:"1s"`
	TelemetryMinInterval time.Duration `yaml:"telemetry_min_interval" default:"0s"`
	// AuthorizationTimeout of 0 waits for the user indefinitely.
	AuthorizationTimeout time.Duration `yaml:"authorization_timeout" default:"0s"`

	// EventBuffer is the capacity of the CLI event queue.
	EventBuffer int `yaml:"event_buffer" default:"256"`
	// HistorySize is the number of telemetry readings kept for the summary.
	HistorySize int `yaml:"history_size" default:"64"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if !slices.Contains(OutputFormats, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output_format: %q must be one of %v", c.OutputFormat, OutputFormats))
	}
	for name, d := range map[string]time.Duration{
		"auth_poll_interval":  c.AuthPollInterval,
		"settle_delay":        c.SettleDelay,
		"motor_poll_interval": c.MotorPollInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, d))
		}
	}
	for name, d := range map[string]time.Duration{
		"scan_timeout":           c.ScanTimeout,
		"connect_timeout":        c.ConnectTimeout,
		"io_timeout":             c.IOTimeout,
		"telemetry_min_interval": c.TelemetryMinInterval,
		"authorization_timeout":  c.AuthorizationTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative, got %s", name, d))
		}
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("event_buffer: must be positive, got %d", c.EventBuffer))
	}
	if c.HistorySize <= 0 {
		errs = append(errs, fmt.Errorf("history_size: must be positive, got %d", c.HistorySize))
	}
	return errors.Join(errs...)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

// SessionOptions maps the timing settings onto session options.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		AuthPollInterval:     c.AuthPollInterval,
		SettleDelay:          c.SettleDelay,
		MotorPollInterval:    c.MotorPollInterval,
		TelemetryMinInterval: c.TelemetryMinInterval,
		AuthorizationTimeout: c.AuthorizationTimeout,
	}
}
