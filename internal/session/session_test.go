//go:build test

//go:generate go run github.com/srgg/testify/depend/cmd/dependgen

package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/session"
	"github.com/srg/lelo/internal/testutils"
	"github.com/srgg/testify/depend"
)

type SessionTestSuite struct {
	testutils.SessionSuite
}

func (s *SessionTestSuite) TestImmediateAcceptance() {
	// GOAL: Verify a device that already reports a token authorizes without prompting the user
	//
	// TEST SCENARIO: First security read is non-zero → token echoed → verdict 0x01 → Authorized

	sess := s.StartSession()

	s.Equal(session.StateAuthorized, sess.State(), "Session MUST be Authorized")
	s.Equal(session.Authorized, sess.Authorization(), "Authorization MUST be Authorized")
	s.Equal("LELO F1", sess.Device().Name, "Device name MUST come from the transport")
	s.Equal([]session.EventKind{session.EventFoundDevice, session.EventFullyInitiated}, s.Recorder.LifecycleKinds(),
		"Only foundDevice and fullyInitiated MUST be emitted")
	s.Zero(s.Recorder.Count(session.EventSecurityAcceptRequired), "User prompt MUST NOT be emitted")

	writes := s.Transport.WritesTo(codec.ServiceControl, codec.CharSecurityAccess)
	s.Require().Len(writes, 1, "Token MUST be echoed exactly once")
	s.Equal(testutils.Token, writes[0], "Echo MUST be byte-identical to the read")

	s.JSON.AssertEvents(s.Recorder.Events()[:2], `[
		{"event":"foundDevice","session":"<<PRESENCE>>","device":"LELO F1"},
		{"event":"fullyInitiated","device":"LELO F1"}
	]`)
}

// @dependsOn TestImmediateAcceptance
func (s *SessionTestSuite) TestUserAcceptanceAfterPolling() {
	// GOAL: Verify zero tokens are polled at the configured interval and the user is prompted once
	//
	// TEST SCENARIO: Token reads zero three times after the first read → fourth poll returns token → Authorized

	s.Transport.ScriptRead(codec.ServiceControl, codec.CharSecurityAccess,
		testutils.Bytes(testutils.ZeroToken...),
		testutils.Bytes(testutils.ZeroToken...),
		testutils.Bytes(testutils.ZeroToken...),
		testutils.Bytes(testutils.ZeroToken...),
		testutils.Bytes(testutils.Token...),
		testutils.Bytes(0x01),
	)

	sess := s.StartSession()

	s.Equal(1, s.Recorder.Count(session.EventSecurityAcceptRequired), "User MUST be prompted exactly once")
	s.Equal([]session.EventKind{
		session.EventFoundDevice,
		session.EventSecurityAcceptRequired,
		session.EventFullyInitiated,
	}, s.Recorder.LifecycleKinds(), "Lifecycle MUST follow the acceptance path")
	s.Equal(session.Authorized, sess.Authorization(), "Authorization MUST be granted")

	times := s.Transport.ReadTimes(codec.ServiceControl, codec.CharSecurityAccess)
	s.Require().Len(times, 6, "Five token reads and one verdict read MUST happen")
	for i := 1; i < 5; i++ {
		s.GreaterOrEqual(times[i].Sub(times[i-1]), s.Options.AuthPollInterval-time.Millisecond,
			"Polls MUST be spaced by at least the poll interval")
	}
	s.GreaterOrEqual(times[5].Sub(times[4]), s.Options.SettleDelay-time.Millisecond,
		"Verdict read MUST wait for the settle delay")
}

func (s *SessionTestSuite) TestRejectedToken() {
	// GOAL: Verify a rejected token fails the session and drops the link
	//
	// TEST SCENARIO: Verdict byte is 0x00 → Start fails → errorConnecting then disconnected

	s.Transport.ScriptRead(codec.ServiceControl, codec.CharSecurityAccess,
		testutils.Bytes(testutils.Token...), testutils.Bytes(0x00))

	sess := s.NewSession()
	err := sess.Start(context.Background())

	s.Require().ErrorIs(err, session.ErrAuthorizationFailed, "Start MUST report the rejection")
	s.Equal(session.StateFailed, sess.State(), "Session MUST be Failed")
	s.Equal(session.AuthorizationFailed, sess.Authorization(), "Authorization MUST be failed")
	s.Equal([]session.EventKind{
		session.EventFoundDevice,
		session.EventErrorConnecting,
		session.EventDisconnected,
	}, s.Recorder.Kinds(), "Failure MUST be followed by disconnected")
	s.Equal("could not authorize", s.Recorder.Of(session.EventErrorConnecting)[0].Message,
		"Failure message MUST be stable")
	s.Equal(1, s.Transport.DisconnectCount(), "Link MUST be dropped once")
	s.Zero(s.Transport.ActiveSubscriptions(), "No telemetry MUST be subscribed")
}

func (s *SessionTestSuite) TestAuthorizationTimeout() {
	// GOAL: Verify the optional acceptance deadline fails a session the user never accepts

	s.Transport.ScriptRead(codec.ServiceControl, codec.CharSecurityAccess, testutils.Bytes(testutils.ZeroToken...))
	s.Options.AuthorizationTimeout = 60 * time.Millisecond

	sess := s.NewSession()
	err := sess.Start(context.Background())

	s.Require().ErrorIs(err, session.ErrAuthorizationTimeout, "Start MUST time out")
	s.Equal(session.AuthorizationFailed, sess.Authorization(), "Authorization MUST be failed")
	s.Equal("authorization timed out", s.Recorder.Of(session.EventErrorConnecting)[0].Message,
		"Timeout MUST be reported")
	s.Empty(s.Transport.WritesTo(codec.ServiceControl, codec.CharSecurityAccess), "Zero token MUST never be echoed")
}

func (s *SessionTestSuite) TestConnectFailure() {
	// GOAL: Verify a failed dial reports errorConnecting without a disconnected event

	s.Transport.ConnectErr = errors.New("adapter powered off")

	sess := s.NewSession()
	err := sess.Start(context.Background())

	var terr *session.TransportError
	s.Require().ErrorAs(err, &terr, "Connect failure MUST be a TransportError")
	s.Equal("connect", terr.Op, "Operation MUST be named")
	s.Equal([]session.EventKind{session.EventErrorConnecting}, s.Recorder.Kinds(),
		"Only errorConnecting MUST be emitted when the link never came up")
	s.Equal(session.StateFailed, sess.State(), "Session MUST be Failed")
	s.Zero(s.Transport.DisconnectCount(), "Nothing to disconnect MUST mean no Disconnect call")
}

func (s *SessionTestSuite) TestCloseDuringHandshake() {
	// GOAL: Verify Close while a security read is in flight ends the handshake cleanly
	//
	// TEST SCENARIO: Security read blocked → Close → Start returns → interrupted error then disconnected

	release := s.Transport.BlockReads(codec.ServiceControl, codec.CharSecurityAccess)
	defer release()

	sess := s.NewSession()
	result := s.StartAsync(context.Background(), sess)
	_, ok := s.Recorder.WaitFor(session.EventFoundDevice, time.Second)
	s.Require().True(ok, "Link MUST come up before the handshake")

	s.Require().NoError(sess.Close())
	err := s.AwaitResult(result, time.Second)

	s.ErrorIs(err, session.ErrSessionClosed, "Start MUST report the close")
	s.Equal(session.StateDisconnected, sess.State(), "Explicit close MUST end Disconnected")
	s.Equal([]session.EventKind{
		session.EventFoundDevice,
		session.EventErrorConnecting,
		session.EventDisconnected,
	}, s.Recorder.Kinds(), "Interrupted handshake MUST report once then disconnect")
	s.Equal("handshake interrupted: session closed", s.Recorder.Of(session.EventErrorConnecting)[0].Message)
	s.Empty(s.Transport.Writes(), "Nothing MUST be written after close")
}

func (s *SessionTestSuite) TestLinkLossWhileAwaitingUser() {
	// GOAL: Verify a remote disconnect during acceptance polling stops the poll chain

	s.Transport.ScriptRead(codec.ServiceControl, codec.CharSecurityAccess, testutils.Bytes(testutils.ZeroToken...))

	sess := s.NewSession()
	result := s.StartAsync(context.Background(), sess)
	_, ok := s.Recorder.WaitFor(session.EventSecurityAcceptRequired, time.Second)
	s.Require().True(ok, "User MUST be prompted")

	s.Transport.TriggerDisconnect()
	err := s.AwaitResult(result, time.Second)
	s.AwaitDone(sess, time.Second)

	s.ErrorIs(err, session.ErrLinkLost, "Start MUST report the link loss")
	s.Contains(s.Recorder.Of(session.EventErrorConnecting)[0].Message, "link lost", "Failure MUST name the link loss")
	s.Equal(session.EventDisconnected, s.Recorder.Kinds()[len(s.Recorder.Kinds())-1], "disconnected MUST be last")

	polls := s.Transport.ReadCount(codec.ServiceControl, codec.CharSecurityAccess)
	time.Sleep(3 * s.Options.AuthPollInterval)
	s.Equal(polls, s.Transport.ReadCount(codec.ServiceControl, codec.CharSecurityAccess),
		"No poll MUST run after the link is lost")
}

func (s *SessionTestSuite) TestStartContextCancelled() {
	// GOAL: Verify cancelling the Start context fails the session

	s.Transport.ScriptRead(codec.ServiceControl, codec.CharSecurityAccess, testutils.Bytes(testutils.ZeroToken...))

	ctx, cancel := context.WithCancel(context.Background())
	sess := s.NewSession()
	result := s.StartAsync(ctx, sess)
	_, ok := s.Recorder.WaitFor(session.EventSecurityAcceptRequired, time.Second)
	s.Require().True(ok, "User MUST be prompted")

	cancel()
	err := s.AwaitResult(result, time.Second)

	s.ErrorIs(err, context.Canceled, "Start MUST report the cancellation")
	s.Equal(session.StateFailed, sess.State(), "Session MUST be Failed")
	s.Equal(1, s.Recorder.Count(session.EventDisconnected), "Link MUST be dropped")
}

// @dependsOn TestImmediateAcceptance
func (s *SessionTestSuite) TestLinkLossAfterAuthorization() {
	// GOAL: Verify a remote disconnect of an authorized session emits only disconnected and releases telemetry

	sess := s.StartSession()
	s.Require().Equal(4, s.Transport.ActiveSubscriptions(), "Telemetry MUST be subscribed")

	s.Transport.TriggerDisconnect()
	s.AwaitDone(sess, time.Second)

	s.Equal(session.StateDisconnected, sess.State(), "Session MUST be Disconnected")
	s.Zero(s.Recorder.Count(session.EventErrorConnecting), "Plain link loss MUST NOT report an error")
	s.Equal(1, s.Transport.CancelCount(codec.ServiceControl, codec.CharDepth), "Subscriptions MUST be cancelled")

	count := len(s.Recorder.Events())
	s.False(s.Transport.Notify(codec.ServiceControl, codec.CharDepth, 0x00, 0x01), "Handler MUST be gone")
	time.Sleep(3 * s.Options.MotorPollInterval)
	s.Len(s.Recorder.Events(), count, "No event MUST follow disconnected")
	s.Equal(session.EventDisconnected, s.Recorder.Events()[count-1].Kind, "disconnected MUST be last")
}

func (s *SessionTestSuite) TestCloseIsIdempotent() {
	// GOAL: Verify repeated Close calls emit a single disconnected event

	sess := s.StartSession()
	s.Require().NoError(sess.Close())
	s.Require().NoError(sess.Close())

	s.Equal(1, s.Recorder.Count(session.EventDisconnected), "disconnected MUST be emitted once")
	s.Equal(1, s.Transport.DisconnectCount(), "Link MUST be dropped once")
	s.True(sess.Closed())
}

func (s *SessionTestSuite) TestStartTwice() {
	// GOAL: Verify a session runs exactly one connection cycle

	sess := s.StartSession()
	err := sess.Start(context.Background())
	s.ErrorIs(err, session.ErrInvalidState, "Second Start MUST be rejected")
	s.Equal(1, s.Transport.ConnectCount(), "Transport MUST be dialed once")
}

// @dependsOn TestImmediateAcceptance
func (s *SessionTestSuite) TestEventsCarrySessionID() {
	// GOAL: Verify every event is stamped with the session id and a time

	sess := s.StartSession()
	s.Require().NoError(sess.Close())
	for _, e := range s.Recorder.Events() {
		s.Equal(sess.ID(), e.SessionID, "Event MUST carry the session id")
		s.False(e.Time.IsZero(), "Event MUST be timestamped")
	}
}

func TestSessionTestSuite(t *testing.T) {
	depend.RunSuite(t, new(SessionTestSuite))
}
