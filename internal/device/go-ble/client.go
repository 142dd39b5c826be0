package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
)

// GATTClient is the part of ble.Client that BLEConnection relies on.
type GATTClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// disconnectNotifier is implemented by clients that report link loss (CoreBluetooth does).
type disconnectNotifier interface {
	Disconnected() <-chan struct{}
}

// Dialer opens a GATT client to the peripheral at address (can be overridden in tests)
var Dialer = func(ctx context.Context, address string) (GATTClient, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	ble.SetDefaultDevice(dev)

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, NormalizeError(err)
	}
	return client, nil
}
