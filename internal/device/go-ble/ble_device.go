package goble

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/device"
)

const (
	gapServiceUUID    = "1800"
	gapDeviceNameChar = "2a00"

	// gapNameReadTimeout bounds the best-effort GAP name read after connecting.
	gapNameReadTimeout = 2 * time.Second
)

// BLEDevice implements device.Device on top of a BLEConnection
type BLEDevice struct {
	id                 string
	name               string
	address            string
	rssi               int
	connectable        bool
	lastSeen           time.Time
	advertisedServices []string
	connection         *BLEConnection
	logger             *logrus.Logger
	mu                 sync.RWMutex
}

// NewBLEDevice creates a BLEDevice with a pre-created connection instance
func NewBLEDevice(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.New()
	}

	return &BLEDevice{
		id:                 address,
		address:            address,
		advertisedServices: make([]string, 0),
		lastSeen:           time.Now(),
		connection:         NewBLEConnection(logger),
		logger:             logger,
	}
}

// NewBLEDeviceFromAdvertisement creates a BLEDevice from a device.Advertisement
func NewBLEDeviceFromAdvertisement(adv device.Advertisement, logger *logrus.Logger) *BLEDevice {
	dev := NewBLEDevice(adv.Addr(), logger)
	dev.Update(adv)
	return dev
}

func (d *BLEDevice) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Name returns the best known name, falling back to the address.
func (d *BLEDevice) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.name == "" {
		return d.address
	}
	return d.name
}

func (d *BLEDevice) Address() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.address
}

func (d *BLEDevice) RSSI() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rssi
}

func (d *BLEDevice) IsConnectable() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connectable
}

func (d *BLEDevice) AdvertisedServices() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.advertisedServices)
}

// Connect establishes the link and resolves the GAP Device Name, which is more
// authoritative than the advertised one.
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if opts == nil {
		opts = &device.ConnectOptions{ConnectTimeout: 30 * time.Second}
	}

	if err := d.connection.Connect(ctx, d.address, opts); err != nil {
		return err
	}

	char, err := d.connection.GetCharacteristic(gapServiceUUID, gapDeviceNameChar)
	if err != nil {
		return nil
	}
	readCtx, cancel := context.WithTimeout(ctx, gapNameReadTimeout)
	defer cancel()

	data, err := char.Read(readCtx)
	if err != nil {
		d.logger.WithField("error", err).Debug("GAP device name read failed")
		return nil
	}
	name := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	if isValidDeviceName(name) {
		d.name = name
		d.logger.WithFields(logrus.Fields{
			"address": d.address,
			"name":    name,
		}).Debug("Resolved device name from GAP")
	}
	return nil
}

func (d *BLEDevice) Disconnect() error {
	return d.connection.Disconnect()
}

func (d *BLEDevice) IsConnected() bool {
	return d.connection.IsConnected()
}

// Update refreshes device information from a new advertisement
func (d *BLEDevice) Update(adv device.Advertisement) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rssi = adv.RSSI()
	d.connectable = adv.Connectable()
	d.lastSeen = time.Now()

	if name := adv.LocalName(); name != "" {
		d.name = name
	}

	for _, svc := range adv.Services() {
		normalized := device.NormalizeUUID(svc)
		if !slices.Contains(d.advertisedServices, normalized) {
			d.advertisedServices = append(d.advertisedServices, normalized)
		}
	}
	slices.Sort(d.advertisedServices)
}

func (d *BLEDevice) GetConnection() device.Connection {
	return d.connection
}

// isValidDeviceName checks if a string looks like a device name
func isValidDeviceName(name string) bool {
	if len(name) < 3 || len(name) > 32 {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
