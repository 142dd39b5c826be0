package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/groutine"
)

// Session owns one connection cycle: link, handshake, telemetry and commands.
type Session struct {
	id        string
	transport Transport
	sink      EventSink
	opts      Options
	logger    *logrus.Entry

	mu      sync.RWMutex
	state   State
	auth    Authorization
	started bool
	linked  bool
	closed  bool
	info    DeviceInfo

	// linkDone is the transport's disconnect notification, set once linked.
	linkDone <-chan struct{}

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	subs      *hashmap.Map[string, Subscription]
	group     groutine.Group
	scheduler *Scheduler
	lastMotor atomic.Pointer[codec.MotorSpeed]
}

// New creates a session over transport. Nothing happens on the link until Start.
// A nil sink discards events; a nil logger is replaced by logrus.New().
func New(transport Transport, sink EventSink, opts Options, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	if sink == nil {
		sink = EventSinkFunc(func(Event) {})
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancelCause(context.Background())
	s := &Session{
		id:        id,
		transport: transport,
		sink:      sink,
		opts:      opts.withDefaults(),
		logger:    logger.WithField("session", id),
		state:     StateConnecting,
		auth:      Unauthorized,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		subs:      hashmap.New[string, Subscription](),
	}
	s.scheduler = newScheduler(s)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Authorization() Authorization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// Device returns the peripheral identity reported at connect time.
func (s *Session) Device() DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Closed reports whether teardown has started.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Done is closed once teardown has finished and the final event was delivered.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Scheduler exposes telemetry registration for this session.
func (s *Session) Scheduler() *Scheduler {
	return s.scheduler
}

// LastMotorSpeed returns the most recent motor read-back, if any.
func (s *Session) LastMotorSpeed() (codec.MotorSpeed, bool) {
	if ms := s.lastMotor.Load(); ms != nil {
		return *ms, true
	}
	return codec.MotorSpeed{}, false
}

// Start connects the link, runs the security handshake and starts telemetry.
// It returns once the session is Authorized or has failed. ctx bounds the whole
// call; cancelling it fails the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		state := s.state
		s.mu.Unlock()
		return &InvalidStateError{Op: "start", State: state}
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("Connecting to device...")
	info, err := s.transport.Connect(ctx)
	if err != nil {
		return s.fail(&TransportError{Op: "connect", Err: err})
	}

	linkDone := s.transport.Disconnected()
	s.mu.Lock()
	s.linked = true
	s.info = info
	s.linkDone = linkDone
	closed := s.closed
	s.mu.Unlock()
	if closed {
		// Closed while dialing: the link is ours to drop.
		_ = s.transport.Disconnect()
		return ErrSessionClosed
	}

	started := s.group.Go(s.ctx, "session-link-monitor", func(ctx context.Context) {
		select {
		case <-linkDone:
			s.logger.Warn("Transport reported disconnection")
			s.shutdown(nil, ErrLinkLost)
		case <-ctx.Done():
		}
	})
	if !started {
		return s.closedError()
	}

	s.logger.WithFields(logrus.Fields{"device": info.Name, "address": info.Address}).Info("Link established")
	s.emit(Event{Kind: EventFoundDevice, DeviceName: info.Name})

	hsCtx, release := s.bind(ctx)
	defer release()
	if err := s.handshake(hsCtx); err != nil {
		return s.fail(err)
	}

	if !s.setState(StateAuthorized) {
		return s.closedError()
	}
	s.mu.Lock()
	s.auth = Authorized
	s.mu.Unlock()

	s.logger.Info("Session authorized")
	s.emit(Event{Kind: EventFullyInitiated, DeviceName: info.Name})

	if err := s.scheduler.start(); err != nil {
		return s.fail(err)
	}
	return nil
}

// Close tears the session down and drops the link. It is idempotent and returns
// after the final event was delivered.
func (s *Session) Close() error {
	s.shutdown(nil, ErrSessionClosed)
	<-s.done
	return nil
}

// bind derives a context cancelled by either the caller's ctx or session teardown.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	bound, cancel := context.WithCancelCause(s.ctx)
	stop := context.AfterFunc(ctx, func() {
		cancel(context.Cause(ctx))
	})
	return bound, func() {
		stop()
		cancel(nil)
	}
}

// setState moves to the given state unless the session is closed.
func (s *Session) setState(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.logger.WithFields(logrus.Fields{"from": s.state, "to": to}).Debug("Session state change")
	s.state = to
	return true
}

func (s *Session) closedError() error {
	if cause := context.Cause(s.ctx); cause != nil {
		return cause
	}
	return ErrSessionClosed
}

func (s *Session) fail(err error) error {
	s.logger.WithField("error", err).Error("Session failed")
	s.shutdown(err, err)
	return err
}

// emit delivers e unless teardown has started or the link reported
// disconnection. Holding the read lock during delivery keeps every emit ordered
// before the final disconnected event.
func (s *Session) emit(e Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stoppedLocked() {
		return false
	}
	s.deliver(e)
	return true
}

// stoppedLocked reports whether teardown started or the disconnect notification
// fired, even if the link monitor has not reacted yet. Callers hold mu.
func (s *Session) stoppedLocked() bool {
	if s.closed {
		return true
	}
	select {
	case <-s.linkDone:
		return true
	default:
		return false
	}
}

func (s *Session) deliver(e Event) {
	e.Time = time.Now()
	e.SessionID = s.id
	s.sink.Emit(e)
}

// addSubscription registers sub under key, cancelling it right away if the
// session already closed.
func (s *Session) addSubscription(key string, sub Subscription) bool {
	s.mu.Lock()
	if !s.closed {
		s.subs.Set(key, sub)
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()
	_ = sub.Cancel()
	return false
}

// shutdown is the single teardown path. failure is the error reported as
// errorConnecting (nil for a plain disconnect); cause is recorded on the context.
func (s *Session) shutdown(failure, cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	handshaking := started && s.state < StateAuthorized
	if failure != nil {
		s.state = StateFailed
		if errors.Is(failure, ErrAuthorizationFailed) || errors.Is(failure, ErrAuthorizationTimeout) {
			s.auth = AuthorizationFailed
		}
	} else {
		s.state = StateDisconnected
	}
	linked := s.linked

	subs := make(map[string]Subscription, s.subs.Len())
	s.subs.Range(func(key string, sub Subscription) bool {
		subs[key] = sub
		return true
	})
	for key := range subs {
		s.subs.Del(key)
	}
	s.mu.Unlock()

	if cause == nil {
		cause = ErrSessionClosed
	}
	s.cancel(cause)

	for key, sub := range subs {
		if err := sub.Cancel(); err != nil {
			s.logger.WithFields(logrus.Fields{"subscription": key, "error": err}).Debug("Subscription cancel failed")
		}
	}
	s.group.Wait()

	if failure == nil && handshaking {
		failure = fmt.Errorf("handshake interrupted: %w", cause)
	}
	if failure != nil && started {
		s.deliver(Event{Kind: EventErrorConnecting, Message: failure.Error()})
	}

	if linked {
		if err := s.transport.Disconnect(); err != nil {
			s.logger.WithField("error", err).Debug("Transport disconnect failed")
		}
		s.deliver(Event{Kind: EventDisconnected})
	}

	s.logger.WithFields(logrus.Fields{
		"cause":         cause,
		"subscriptions": len(subs),
	}).Info("Session closed")
	close(s.done)
}
