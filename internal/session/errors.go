package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationFailed is returned when the device rejects the echoed security token.
	ErrAuthorizationFailed = errors.New("could not authorize")

	// ErrAuthorizationTimeout is returned when the user did not accept within Options.AuthorizationTimeout.
	ErrAuthorizationTimeout = errors.New("authorization timed out")

	// ErrInvalidState is matched by every *InvalidStateError.
	ErrInvalidState = errors.New("invalid session state")

	// ErrSessionActive is returned by Controller.InitConnection while a session is live.
	ErrSessionActive = errors.New("session already active")

	// ErrSessionClosed is the teardown cause after an explicit Close.
	ErrSessionClosed = errors.New("session closed")

	// ErrLinkLost is the teardown cause when the transport reports a disconnect.
	ErrLinkLost = errors.New("link lost")
)

// InvalidStateError reports a command issued outside the Authorized state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: session is %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// TransportError wraps a failure reported by the transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
