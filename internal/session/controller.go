package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Controller is the inbound command surface. It holds at most one live Session
// per transport and creates a fresh one for every connection cycle.
type Controller struct {
	transport Transport
	sink      EventSink
	opts      Options
	logger    *logrus.Logger

	mu      sync.Mutex
	current *Session
}

func NewController(transport Transport, sink EventSink, opts Options, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		transport: transport,
		sink:      sink,
		opts:      opts,
		logger:    logger,
	}
}

// InitConnection starts a new session and blocks until it is authorized or failed.
// It returns ErrSessionActive while a previous session is still live.
func (c *Controller) InitConnection(ctx context.Context) error {
	c.mu.Lock()
	if c.current != nil && !c.current.Closed() {
		c.mu.Unlock()
		return ErrSessionActive
	}
	s := New(c.transport, c.sink, c.opts, c.logger)
	c.current = s
	c.mu.Unlock()

	return s.Start(ctx)
}

// Session returns the most recent session, or nil before the first InitConnection.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) active(op string) (*Session, error) {
	s := c.Session()
	if s == nil {
		return nil, &InvalidStateError{Op: op, State: StateDisconnected}
	}
	return s, nil
}

func (c *Controller) Shutdown(ctx context.Context) error {
	s, err := c.active("shutdown")
	if err != nil {
		return err
	}
	return s.Shutdown(ctx)
}

func (c *Controller) StopMotors(ctx context.Context) error {
	s, err := c.active("stop motors")
	if err != nil {
		return err
	}
	return s.StopMotors(ctx)
}

func (c *Controller) CalibrateAccelerometer(ctx context.Context) error {
	s, err := c.active("calibrate accelerometer")
	if err != nil {
		return err
	}
	return s.CalibrateAccelerometer(ctx)
}

func (c *Controller) SetMotorSpeed(ctx context.Context, speed MotorSpeed) error {
	s, err := c.active("set motor speed")
	if err != nil {
		return err
	}
	return s.SetMotorSpeed(ctx, speed)
}

// Disconnect closes the current session, if any.
func (c *Controller) Disconnect() error {
	s := c.Session()
	if s == nil {
		return nil
	}
	return s.Close()
}
