package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/device"
)

// DeviceInfo identifies the connected peripheral.
type DeviceInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Subscription is an active notification registration.
type Subscription interface {
	Cancel() error
}

// Transport is the link to one peripheral as seen by a Session.
//
// Read and Write are bounded by ctx. Subscribe delivers each notification payload
// to fn on a transport goroutine. Disconnected is closed when the current link
// ends, for whatever reason.
type Transport interface {
	Connect(ctx context.Context) (DeviceInfo, error)
	Disconnect() error
	IsConnected() bool
	Read(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID) ([]byte, error)
	Write(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID, data []byte) error
	Subscribe(svc codec.ServiceID, chr codec.CharacteristicID, fn func([]byte)) (Subscription, error)
	Disconnected() <-chan struct{}
}

// DeviceTransport adapts a device.Device to Transport.
type DeviceTransport struct {
	dev    device.Device
	logger *logrus.Logger

	// ConnectTimeout bounds link establishment (0 = bounded only by the caller's context).
	ConnectTimeout time.Duration
	// IOTimeout bounds each read and write (0 = bounded only by the caller's context).
	IOTimeout time.Duration
}

var _ Transport = (*DeviceTransport)(nil)

func NewDeviceTransport(dev device.Device, logger *logrus.Logger) *DeviceTransport {
	if logger == nil {
		logger = logrus.New()
	}
	return &DeviceTransport{dev: dev, logger: logger}
}

func (t *DeviceTransport) Connect(ctx context.Context) (DeviceInfo, error) {
	err := t.dev.Connect(ctx, &device.ConnectOptions{
		Address:        t.dev.Address(),
		ConnectTimeout: t.ConnectTimeout,
	})
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{Name: t.dev.Name(), Address: t.dev.Address()}, nil
}

func (t *DeviceTransport) Disconnect() error {
	return t.dev.Disconnect()
}

func (t *DeviceTransport) IsConnected() bool {
	return t.dev.IsConnected()
}

func (t *DeviceTransport) characteristic(svc codec.ServiceID, chr codec.CharacteristicID) (device.Characteristic, error) {
	conn := t.dev.GetConnection()
	if conn == nil || !t.dev.IsConnected() {
		return nil, device.ErrNotConnected
	}
	return conn.GetCharacteristic(svc.UUID(), chr.UUID())
}

func (t *DeviceTransport) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.IOTimeout > 0 {
		return context.WithTimeout(ctx, t.IOTimeout)
	}
	return context.WithCancel(ctx)
}

func (t *DeviceTransport) Read(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID) ([]byte, error) {
	char, err := t.characteristic(svc, chr)
	if err != nil {
		return nil, err
	}
	ioCtx, cancel := t.ioContext(ctx)
	defer cancel()
	return char.Read(ioCtx)
}

func (t *DeviceTransport) Write(ctx context.Context, svc codec.ServiceID, chr codec.CharacteristicID, data []byte) error {
	char, err := t.characteristic(svc, chr)
	if err != nil {
		return err
	}
	ioCtx, cancel := t.ioContext(ctx)
	defer cancel()
	return char.Write(ioCtx, data, true)
}

func (t *DeviceTransport) Subscribe(svc codec.ServiceID, chr codec.CharacteristicID, fn func([]byte)) (Subscription, error) {
	conn := t.dev.GetConnection()
	if conn == nil || !t.dev.IsConnected() {
		return nil, device.ErrNotConnected
	}
	if err := conn.Subscribe(svc.UUID(), chr.UUID(), fn); err != nil {
		return nil, err
	}
	t.logger.WithFields(logrus.Fields{"service": svc, "char": chr}).Debug("Notification subscription active")
	return &deviceSubscription{conn: conn, svc: svc, chr: chr}, nil
}

func (t *DeviceTransport) Disconnected() <-chan struct{} {
	conn := t.dev.GetConnection()
	if conn == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return conn.Done()
}

type deviceSubscription struct {
	conn device.Connection
	svc  codec.ServiceID
	chr  codec.CharacteristicID
}

func (s *deviceSubscription) Cancel() error {
	if err := s.conn.Unsubscribe(s.svc.UUID(), s.chr.UUID()); err != nil {
		return fmt.Errorf("unsubscribe %s/%s: %w", s.svc, s.chr, err)
	}
	return nil
}
