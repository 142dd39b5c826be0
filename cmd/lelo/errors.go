package main

import (
	"context"
	"errors"

	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/scanner"
	"github.com/srg/lelo/internal/session"
)

// FormatUserError turns well-known failures into actionable messages.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is unavailable, is it turned on?"
	case errors.Is(err, scanner.ErrNoDevice):
		return "no LELO device found nearby, make sure it is switched on and not connected elsewhere"
	case errors.Is(err, session.ErrAuthorizationFailed):
		return "the device rejected the connection (could not authorize)"
	case errors.Is(err, session.ErrAuthorizationTimeout):
		return "the connection was not accepted on the device in time"
	case errors.Is(err, session.ErrLinkLost):
		return "connection to the device was lost"
	case errors.Is(err, session.ErrSessionActive):
		return "a session is already active"
	case errors.Is(err, session.ErrInvalidState):
		return "the device is not connected and authorized: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrTimeout):
		return "operation timed out: " + err.Error()
	default:
		return err.Error()
	}
}
