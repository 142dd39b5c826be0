package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
)

// handshake runs the security exchange on the control service:
//
//  1. read the security characteristic as a big-endian uint64
//  2. while it reads zero, ask the user to accept on the device and poll
//  3. echo the exact bytes read back to the characteristic
//  4. wait SettleDelay, read again, and require byte 0 == 1
func (s *Session) handshake(ctx context.Context) error {
	raw, token, err := s.readSecurity(ctx)
	if err != nil {
		return err
	}

	if token == 0 {
		if !s.setState(StateAwaitingUserAuthorization) {
			return s.closedError()
		}
		s.mu.Lock()
		s.auth = PendingUserAccept
		s.mu.Unlock()
		s.logger.Info("Waiting for the user to accept the connection on the device")
		s.emit(Event{Kind: EventSecurityAcceptRequired})

		raw, err = s.awaitToken(ctx)
		if err != nil {
			return err
		}
	}

	if err := s.transport.Write(ctx, codec.ServiceControl, codec.CharSecurityAccess, raw); err != nil {
		return &TransportError{Op: "write security access", Err: err}
	}
	if !s.setState(StateAuthorizing) {
		return s.closedError()
	}

	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return err
	}

	verdict, err := s.transport.Read(ctx, codec.ServiceControl, codec.CharSecurityAccess)
	if err != nil {
		return &TransportError{Op: "read security access", Err: err}
	}
	granted, err := codec.AuthorizationGranted(verdict)
	if err != nil {
		return err
	}
	if !granted {
		s.logger.WithField("bytes", verdict).Warn("Device rejected the security token")
		return ErrAuthorizationFailed
	}
	return nil
}

// awaitToken polls every AuthPollInterval until the token is non-zero.
func (s *Session) awaitToken(ctx context.Context) ([]byte, error) {
	var deadline <-chan time.Time
	if s.opts.AuthorizationTimeout > 0 {
		t := time.NewTimer(s.opts.AuthorizationTimeout)
		defer t.Stop()
		deadline = t.C
	}

	poll := time.NewTimer(s.opts.AuthPollInterval)
	defer poll.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-deadline:
			return nil, ErrAuthorizationTimeout
		case <-poll.C:
		}

		raw, token, err := s.readSecurity(ctx)
		if err != nil {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{"attempt": attempt, "accepted": token != 0}).Debug("Security access polled")
		if token != 0 {
			return raw, nil
		}
		poll.Reset(s.opts.AuthPollInterval)
	}
}

func (s *Session) readSecurity(ctx context.Context) ([]byte, uint64, error) {
	raw, err := s.transport.Read(ctx, codec.ServiceControl, codec.CharSecurityAccess)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return nil, 0, cause
		}
		if !s.transport.IsConnected() {
			return nil, 0, ErrLinkLost
		}
		return nil, 0, &TransportError{Op: "read security access", Err: err}
	}
	token, err := codec.DecodeSecurityToken(raw)
	if err != nil {
		return nil, 0, err
	}
	return raw, token, nil
}

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-t.C:
		return nil
	}
}
