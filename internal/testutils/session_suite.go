//go:build test

package testutils

import (
	"context"
	"time"

	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/session"
	"github.com/stretchr/testify/suite"
)

// Token is a non-zero security token as the device reports it once accepted.
var Token = []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}

// ZeroToken is the security value before the user accepts.
var ZeroToken = make([]byte, 8)

// SessionSuite runs sessions against a FakeTransport with millisecond pacing.
type SessionSuite struct {
	suite.Suite
	Helper    *TestHelper
	Transport *FakeTransport
	Recorder  *EventRecorder
	Options   session.Options
	JSON      *JSONAsserter
}

func (s *SessionSuite) SetupTest() {
	s.Helper = NewTestHelper(s.T())
	s.Recorder = NewEventRecorder()
	s.JSON = NewJSONAsserter(s.T())
	s.Options = session.Options{
		AuthPollInterval:  20 * time.Millisecond,
		SettleDelay:       10 * time.Millisecond,
		MotorPollInterval: 15 * time.Millisecond,
	}
	s.Transport = NewFakeTransport("LELO F1")
	s.Transport.
		ScriptRead(codec.ServiceControl, codec.CharSecurityAccess, Bytes(Token...), Bytes(0x01)).
		ScriptRead(codec.ServiceControl, codec.CharMotorControl, Bytes(0x01, 0x20, 0x10))
}

// NewSession creates a session over the suite transport and closes it on cleanup.
func (s *SessionSuite) NewSession() *session.Session {
	sess := session.New(s.Transport, s.Recorder, s.Options, s.Helper.Logger)
	s.T().Cleanup(func() { _ = sess.Close() })
	return sess
}

// StartSession creates and starts a session, requiring it to authorize.
func (s *SessionSuite) StartSession() *session.Session {
	sess := s.NewSession()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(sess.Start(ctx), "Session MUST authorize")
	return sess
}

// StartAsync runs Start on a goroutine and returns a channel with its result.
func (s *SessionSuite) StartAsync(ctx context.Context, sess *session.Session) <-chan error {
	result := make(chan error, 1)
	go func() { result <- sess.Start(ctx) }()
	return result
}

// AwaitResult waits for a Start result.
func (s *SessionSuite) AwaitResult(result <-chan error, timeout time.Duration) error {
	select {
	case err := <-result:
		return err
	case <-time.After(timeout):
		s.FailNow("Start did not return in time")
		return nil
	}
}

// AwaitDone waits for session teardown to finish.
func (s *SessionSuite) AwaitDone(sess *session.Session, timeout time.Duration) {
	select {
	case <-sess.Done():
	case <-time.After(timeout):
		s.FailNow("Session teardown did not finish in time")
	}
}
