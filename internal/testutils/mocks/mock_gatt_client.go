//go:build test

package mocks

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockGATTClient is a testify mock of goble.GATTClient that also reports
// disconnections like the CoreBluetooth client does.
type MockGATTClient struct {
	mock.Mock

	disconnected chan struct{}
	once         sync.Once

	handlersMu sync.Mutex
	handlers   map[*ble.Characteristic]ble.NotificationHandler
}

func NewMockGATTClient() *MockGATTClient {
	return &MockGATTClient{
		disconnected: make(chan struct{}),
		handlers:     make(map[*ble.Characteristic]ble.NotificationHandler),
	}
}

func (m *MockGATTClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	var profile *ble.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*ble.Profile)
	}
	return profile, args.Error(1)
}

// ReadCharacteristic returns the configured value. A func(*ble.Characteristic) ([]byte, error)
// return value is called instead, so tests can block or vary results.
func (m *MockGATTClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	if fn, ok := args.Get(0).(func(*ble.Characteristic) ([]byte, error)); ok {
		return fn(c)
	}
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockGATTClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	args := m.Called(c, value, noRsp)
	return args.Error(0)
}

func (m *MockGATTClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	args := m.Called(c, ind, h)
	if err := args.Error(0); err != nil {
		return err
	}
	m.handlersMu.Lock()
	m.handlers[c] = h
	m.handlersMu.Unlock()
	return nil
}

// Handler returns the notification handler of the latest successful Subscribe on c.
func (m *MockGATTClient) Handler(c *ble.Characteristic) ble.NotificationHandler {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	return m.handlers[c]
}

func (m *MockGATTClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	args := m.Called(c, ind)
	return args.Error(0)
}

func (m *MockGATTClient) CancelConnection() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockGATTClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// SimulateDisconnect closes the Disconnected channel, as if the peripheral went away.
func (m *MockGATTClient) SimulateDisconnect() {
	m.once.Do(func() { close(m.disconnected) })
}
