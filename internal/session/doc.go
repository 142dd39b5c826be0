// Package session drives one connection to a LELO-style peripheral: the
// security handshake, telemetry subscriptions and motor read-back polling,
// outbound motor commands, and lifecycle events.
//
// A Session is single-use. Teardown is idempotent and releases every
// subscription, poller and goroutine the session owns; nothing is emitted
// for the session after its disconnected event.
package session
