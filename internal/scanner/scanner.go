// Package scanner discovers peripherals advertising the LELO control service.
package scanner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/devicefactory"
)

// ErrNoDevice is returned by FindFirst when the scan ends without a match.
var ErrNoDevice = errors.New("no matching device found")

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type   DeviceEventType
	Device device.DeviceInfo
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	// ServiceUUIDs a device must advertise at least one of (empty = any device).
	ServiceUUIDs []string
	AllowList    []string
	BlockList    []string
	// OnDevice is called from the scan goroutine for every accepted advertisement.
	OnDevice func(DeviceEvent)
}

// DefaultScanOptions looks for the control service for ten seconds.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		ServiceUUIDs:    []string{codec.ServiceControl.UUID()},
	}
}

// Scanner handles BLE device discovery
type Scanner struct {
	devices *hashmap.Map[string, device.Device]
	logger  *logrus.Logger
}

func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		devices: hashmap.New[string, device.Device](),
		logger:  logger,
	}
}

// Scan runs discovery for opts.Duration (or until ctx ends) and returns the
// matching devices, strongest signal first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) ([]device.DeviceInfo, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if err := s.run(ctx, opts, nil); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// FindFirst scans until the first matching device is seen and returns it.
func (s *Scanner) FindFirst(ctx context.Context, opts *ScanOptions) (device.Device, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}

	found := make(chan device.Device, 1)
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.run(scanCtx, opts, func(dev device.Device) {
		select {
		case found <- dev:
			cancel()
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	select {
	case dev := <-found:
		return dev, nil
	default:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoDevice
	}
}

// Device returns a device discovered by the last scan.
func (s *Scanner) Device(address string) (device.Device, bool) {
	return s.devices.Get(address)
}

func (s *Scanner) run(ctx context.Context, opts *ScanOptions, onMatch func(device.Device)) error {
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.devices = hashmap.New[string, device.Device]()

	scanDevice, err := devicefactory.ScannerFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"services": opts.ServiceUUIDs,
	}).Info("Starting BLE scan...")

	err = scanDevice.Scan(ctx, !opts.DuplicateFilter, func(adv device.Advertisement) {
		s.handleAdvertisement(adv, opts, onMatch)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	return nil
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement, opts *ScanOptions, onMatch func(device.Device)) {
	addr := adv.Addr()

	dev, existing := s.devices.Get(addr)
	if !existing {
		if !ShouldInclude(adv, opts) {
			return
		}
		dev, existing = s.devices.GetOrInsert(addr, devicefactory.NewDeviceFromAdvertisement(adv, s.logger))
	}

	event := DeviceEvent{Device: dev}
	if existing {
		dev.Update(adv)
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  dev.Name(),
			"address": dev.Address(),
			"rssi":    dev.RSSI(),
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	if onMatch != nil {
		onMatch(dev)
	}
	if opts.OnDevice != nil {
		opts.OnDevice(event)
	}
}

// ShouldInclude applies the block, allow and service filters of opts.
func ShouldInclude(adv device.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr()
	sameAddr := func(a string) bool { return strings.EqualFold(addr, a) }
	if slices.ContainsFunc(opts.BlockList, sameAddr) {
		return false
	}
	if len(opts.AllowList) > 0 && !slices.ContainsFunc(opts.AllowList, sameAddr) {
		return false
	}
	if len(opts.ServiceUUIDs) == 0 {
		return true
	}

	advertised := device.NormalizeUUIDs(adv.Services())
	for _, required := range device.NormalizeUUIDs(opts.ServiceUUIDs) {
		if slices.Contains(advertised, required) {
			return true
		}
	}
	return false
}

func (s *Scanner) snapshot() []device.DeviceInfo {
	devs := make([]device.DeviceInfo, 0, s.devices.Len())
	s.devices.Range(func(_ string, value device.Device) bool {
		devs = append(devs, value)
		return true
	})
	slices.SortFunc(devs, func(a, b device.DeviceInfo) int {
		if c := cmp.Compare(b.RSSI(), a.RSSI()); c != 0 {
			return c
		}
		return cmp.Compare(a.Address(), b.Address())
	})
	return devs
}
