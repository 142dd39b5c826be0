//go:build test

package testutils

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	goble "github.com/srg/lelo/internal/device/go-ble"
	"github.com/srg/lelo/internal/testutils/mocks"
	"github.com/stretchr/testify/suite"
)

// MockPeripheralSuite swaps the go-ble dialer for a mocked GATT client.
//
// Usage:
//
//	type ConnectionSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func (s *ConnectionSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("FFF0").
//	        WithCharacteristic("0A10", "read,write", make([]byte, 8))
//	    s.MockPeripheralSuite.SetupTest() // call parent last to apply configuration
//	}
type MockPeripheralSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	OriginalDialer    func(ctx context.Context, address string) (goble.GATTClient, error)
	TestTimeout       time.Duration
	PeripheralBuilder *PeripheralBuilder
	Client            *mocks.MockGATTClient
	DialCount         int
}

func (s *MockPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 2 * time.Second
	s.OriginalDialer = goble.Dialer

	s.T().Cleanup(func() {
		goble.Dialer = s.OriginalDialer
	})
}

// SetupTest builds the mocked client (default: the device's control service with a
// zeroed security characteristic) and installs the dialer.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = DefaultPeripheral()
	}
	s.Client = s.PeripheralBuilder.Build()
	s.DialCount = 0

	goble.Dialer = func(ctx context.Context, address string) (goble.GATTClient, error) {
		s.DialCount++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Client, nil
	}
}

func (s *MockPeripheralSuite) TearDownTest() {
	goble.Dialer = s.OriginalDialer
	s.PeripheralBuilder = nil
	s.Client = nil
}

// WithPeripheral returns the builder used by the next SetupTest.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralBuilder()
	}
	return s.PeripheralBuilder
}

// DefaultPeripheral mirrors the device profile: GAP name, battery and the control service.
func DefaultPeripheral() *PeripheralBuilder {
	return NewPeripheralBuilder().FromJSON(`
	{
		"services": [
			{ "uuid": "1800", "characteristics": [ { "uuid": "2A00", "properties": "read", "value": [76,69,76,79,32,70,49] } ] },
			{ "uuid": "180F", "characteristics": [ { "uuid": "2A19", "properties": "read,notify", "value": [85] } ] },
			{
				"uuid": "FFF0",
				"characteristics": [
					{ "uuid": "0A10", "properties": "read,write", "value": [0,0,0,0,0,0,0,0] },
					{ "uuid": "FFF1", "properties": "read,write", "value": [1,0,0] },
					{ "uuid": "0A0B", "properties": "notify" },
					{ "uuid": "0AA3", "properties": "notify" },
					{ "uuid": "0A0C", "properties": "indicate" }
				]
			}
		]
	}`)
}
