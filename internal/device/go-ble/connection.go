package goble

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/bledb"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/groutine"
)

// BLEConnection represents a live GATT link (profile, reads, writes, notifications)
type BLEConnection struct {
	client      GATTClient
	logger      *logrus.Logger
	writeMutex  sync.Mutex
	connMutex   sync.RWMutex
	isConnected bool

	services   map[string]*BLEService
	subscribed map[*BLECharacteristic]bool // value is the indicate flag used

	ctx    context.Context
	cancel context.CancelCauseFunc
}

func NewBLEConnection(logger *logrus.Logger) *BLEConnection {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(device.ErrNotConnected)

	return &BLEConnection{
		services:   make(map[string]*BLEService),
		subscribed: make(map[*BLECharacteristic]bool),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Connect dials the peripheral, discovers its profile and starts the disconnect monitor.
func (c *BLEConnection) Connect(ctx context.Context, address string, opts *device.ConnectOptions) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		c.logger.Error("Connection attempt with empty address")
		return fmt.Errorf("device address is empty")
	}

	if c.isConnectedInternal() {
		c.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	logger := c.logger.WithField("address", address)
	dialCtx := ctx
	if opts != nil && opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	logger.Debug("Dialing BLE device...")
	client, err := Dialer(dialCtx, address)
	if err != nil {
		logger.WithField("error", err).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", address, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		logger.WithField("error", err).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after profile discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	services := make(map[string]*BLEService, len(profile.Services))
	totalChars := 0
	for _, bleSvc := range profile.Services {
		raw := bleSvc.UUID.String()
		svc := &BLEService{
			uuid:            device.NormalizeUUID(raw),
			knownName:       bledb.LookupService(raw),
			Characteristics: make(map[string]*BLECharacteristic, len(bleSvc.Characteristics)),
		}
		for _, bleChar := range bleSvc.Characteristics {
			char := newCharacteristic(bleChar, c)
			svc.Characteristics[char.uuid] = char
			totalChars++
		}
		services[svc.uuid] = svc
	}

	c.client = client
	c.services = services
	c.subscribed = make(map[*BLECharacteristic]bool)
	c.isConnected = true
	// The link outlives the dial call, so only values are inherited from ctx.
	c.ctx, c.cancel = context.WithCancelCause(context.WithoutCancel(ctx))

	if notifier, ok := client.(disconnectNotifier); ok {
		linkCtx := c.ctx
		groutine.Go(linkCtx, "ble-connection-monitor", func(context.Context) {
			select {
			case <-notifier.Disconnected():
				c.handleLinkLoss(client)
			case <-linkCtx.Done():
			}
		})
	} else {
		c.logger.Debug("Client does not report disconnections, link loss is only seen on failed operations")
	}

	logger.WithFields(logrus.Fields{
		"services":        len(services),
		"characteristics": totalChars,
	}).Info("BLE device connected successfully")
	return nil
}

// handleLinkLoss marks the connection down after the peripheral or the OS dropped it.
func (c *BLEConnection) handleLinkLoss(client GATTClient) {
	c.connMutex.Lock()
	if c.client != client || !c.isConnected {
		c.connMutex.Unlock()
		return
	}
	cancel := c.cancel
	c.client = nil
	c.isConnected = false
	c.subscribed = make(map[*BLECharacteristic]bool)
	c.connMutex.Unlock()

	c.logger.Warn("Peripheral reported disconnection, cancelling connection context")
	cancel(device.ErrNotConnected)
}

// Disconnect unsubscribes everything and tears the link down. Calling it on a closed
// connection is a no-op.
func (c *BLEConnection) Disconnect() error {
	c.connMutex.Lock()
	if !c.isConnectedInternal() {
		c.connMutex.Unlock()
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	client := c.client
	cancel := c.cancel
	subscribed := c.subscribed

	c.client = nil
	c.isConnected = false
	c.subscribed = make(map[*BLECharacteristic]bool)
	c.connMutex.Unlock()

	c.logger.WithField("subscriptions", len(subscribed)).Info("Disconnecting BLE device...")
	cancel(nil)

	var unsubscribeErrors []string
	for char, ind := range subscribed {
		if err := NormalizeError(client.Unsubscribe(char.BLEChar, ind)); err != nil {
			unsubscribeErrors = append(unsubscribeErrors, fmt.Sprintf("%s: %v", char.uuid, err))
		}
	}
	if len(unsubscribeErrors) > 0 {
		c.logger.WithField("errors", strings.Join(unsubscribeErrors, "; ")).Warn("Failed to unsubscribe from some characteristics during disconnect")
	}

	err := NormalizeError(client.CancelConnection())
	if err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return err
	}
	c.logger.Info("BLE device disconnected successfully")
	return nil
}

// isConnectedInternal must be called with connMutex held.
func (c *BLEConnection) isConnectedInternal() bool {
	return c.client != nil && c.isConnected
}

func (c *BLEConnection) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.isConnectedInternal()
}

// activeClient snapshots the client for a network call made outside the lock.
func (c *BLEConnection) activeClient() (GATTClient, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	if !c.isConnectedInternal() {
		return nil, device.ErrNotConnected
	}
	return c.client, nil
}

// Done is closed when the link ends.
func (c *BLEConnection) Done() <-chan struct{} {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.ctx.Done()
}

// DisconnectCause returns device.ErrNotConnected after link loss and nil after a local Disconnect.
func (c *BLEConnection) DisconnectCause() error {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	if c.ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(c.ctx)
	if cause == context.Canceled {
		return nil
	}
	return cause
}

// Services returns all discovered services sorted by UUID.
func (c *BLEConnection) Services() []device.Service {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	result := make([]device.Service, 0, len(c.services))
	for _, v := range c.services {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UUID() < result[j].UUID()
	})
	return result
}

// GetService returns a NotFoundError if the service was not discovered.
func (c *BLEConnection) GetService(uuid string) (device.Service, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	svc, ok := c.services[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// GetCharacteristic retrieves a characteristic by service and characteristic UUID.
func (c *BLEConnection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.lookupInternal(service, uuid)
}

func (c *BLEConnection) lookupInternal(service, uuid string) (*BLECharacteristic, error) {
	svc, ok := c.services[device.NormalizeUUID(service)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}
	char, ok := svc.Characteristics[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return char, nil
}

// Subscribe enables notifications, falling back to indications when the characteristic
// only supports those. Each payload is copied before handler sees it.
func (c *BLEConnection) Subscribe(service, uuid string, handler device.NotificationHandler) error {
	c.connMutex.RLock()
	if !c.isConnectedInternal() {
		c.connMutex.RUnlock()
		return device.ErrNotConnected
	}
	char, err := c.lookupInternal(service, uuid)
	if err != nil {
		c.connMutex.RUnlock()
		return err
	}
	client := c.client
	c.connMutex.RUnlock()

	props := char.properties
	if !props.CanNotify() && !props.CanIndicate() {
		return fmt.Errorf("characteristic %s in service %s has no notification support: %w", uuid, service, device.ErrUnsupported)
	}
	ind := !props.CanNotify()

	logger := c.logger.WithFields(logrus.Fields{"service": service, "char": uuid})
	err = NormalizeError(client.Subscribe(char.BLEChar, ind, func(data []byte) {
		handler(append([]byte(nil), data...))
	}))
	if err != nil {
		logger.WithField("error", err).Error("Failed to subscribe to characteristic notifications")
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", uuid, err)
	}

	c.connMutex.Lock()
	if c.client == client {
		c.subscribed[char] = ind
	}
	c.connMutex.Unlock()

	logger.Debug("Subscribed to characteristic notifications")
	return nil
}

// Unsubscribe disables notifications on a characteristic previously subscribed.
func (c *BLEConnection) Unsubscribe(service, uuid string) error {
	c.connMutex.Lock()
	if !c.isConnectedInternal() {
		c.connMutex.Unlock()
		return nil
	}
	char, err := c.lookupInternal(service, uuid)
	if err != nil {
		c.connMutex.Unlock()
		return err
	}
	ind, ok := c.subscribed[char]
	delete(c.subscribed, char)
	client := c.client
	c.connMutex.Unlock()

	if !ok {
		return nil
	}
	if err := NormalizeError(client.Unsubscribe(char.BLEChar, ind)); err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", uuid, err)
	}
	return nil
}
