package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/scanner"
	"github.com/srg/lelo/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "bluetooth off", err: fmt.Errorf("scan: %w", device.ErrBluetoothOff), want: "Bluetooth is unavailable, is it turned on?"},
		{name: "no device", err: scanner.ErrNoDevice, want: "no LELO device found nearby, make sure it is switched on and not connected elsewhere"},
		{name: "rejected", err: session.ErrAuthorizationFailed, want: "the device rejected the connection (could not authorize)"},
		{name: "not accepted in time", err: session.ErrAuthorizationTimeout, want: "the connection was not accepted on the device in time"},
		{name: "link lost", err: fmt.Errorf("monitor: %w", session.ErrLinkLost), want: "connection to the device was lost"},
		{name: "active session", err: session.ErrSessionActive, want: "a session is already active"},
		{name: "deadline", err: context.DeadlineExceeded, want: "operation timed out: context deadline exceeded"},
		{name: "passthrough", err: errors.New("boom"), want: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatUserError_InvalidState(t *testing.T) {
	err := &session.InvalidStateError{Op: "set motor speed", State: session.StateDisconnected}
	assert.Contains(t, FormatUserError(err), "the device is not connected and authorized: ")
}
