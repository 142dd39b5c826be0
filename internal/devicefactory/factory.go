// Package devicefactory picks the BLE backend for device and scanner construction.
package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/device"
	goble "github.com/srg/lelo/internal/device/go-ble"
)

// ScannerFactory creates device.ScanningDevice instances.
// This is a variable so that it can be overridden in tests.
var ScannerFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}

// NewDevice creates a BLE device for a known address.
var NewDevice = func(address string, logger *logrus.Logger) device.Device {
	return goble.NewBLEDevice(address, logger)
}

// NewDeviceFromAdvertisement creates a BLE device from a scan result.
var NewDeviceFromAdvertisement = func(adv device.Advertisement, logger *logrus.Logger) device.Device {
	return goble.NewBLEDeviceFromAdvertisement(adv, logger)
}
