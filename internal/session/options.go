package session

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

// Options tune handshake and telemetry timing. Zero durations for the pacing
// fields are replaced by their defaults in NewOptions.
type Options struct {
	// AuthPollInterval separates security reads while waiting for the user to accept.
	AuthPollInterval time.Duration `default:"1s"`

	// SettleDelay is the pause between echoing the token and reading the verdict.
	SettleDelay time.Duration `default:"1s"`

	// MotorPollInterval is the motor read-back period.
	MotorPollInterval time.Duration `default:"1s"`

	// TelemetryMinInterval limits each notification stream to one event per interval (0 = no limit).
	TelemetryMinInterval time.Duration `default:"0s"`

	// AuthorizationTimeout bounds the wait for user acceptance (0 = wait until disconnect).
	AuthorizationTimeout time.Duration `default:"0s"`
}

// NewOptions returns Options populated with defaults.
func NewOptions() Options {
	var o Options
	defaults.SetDefaults(&o)
	return o
}

// withDefaults fills zero pacing fields from the defaults.
func (o Options) withDefaults() Options {
	d := NewOptions()
	if o.AuthPollInterval <= 0 {
		o.AuthPollInterval = d.AuthPollInterval
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = d.SettleDelay
	}
	if o.MotorPollInterval <= 0 {
		o.MotorPollInterval = d.MotorPollInterval
	}
	return o
}
