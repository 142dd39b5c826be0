//go:build test

package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	blelib "github.com/go-ble/ble"
	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig describes a mocked characteristic.
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,write,notify"
	Value      []byte `json:"value,omitempty"`
}

// ServiceConfig describes a mocked service.
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralConfig is the GATT profile of a mocked peripheral.
type PeripheralConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds a MockGATTClient serving a configured profile.
type PeripheralBuilder struct {
	config  PeripheralConfig
	profile *blelib.Profile
}

func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{}
}

// WithService adds a service; following WithCharacteristic calls attach to it.
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.config.Services = append(b.config.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service.
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties string, value []byte) *PeripheralBuilder {
	if len(b.config.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}
	last := &b.config.Services[len(b.config.Services)-1]
	last.Characteristics = append(last.Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// FromJSON replaces the profile. Panics on invalid JSON.
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	var config PeripheralConfig
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &config); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.config = config
	return b
}

// parseProperties converts "read,write,notify" style lists to ble.Property flags.
func parseProperties(props string) blelib.Property {
	if props == "" {
		return blelib.CharRead | blelib.CharWrite | blelib.CharNotify
	}
	var p blelib.Property
	for _, name := range strings.Split(props, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "read":
			p |= blelib.CharRead
		case "write":
			p |= blelib.CharWrite
		case "write-without-response", "writenr":
			p |= blelib.CharWriteNR
		case "notify":
			p |= blelib.CharNotify
		case "indicate":
			p |= blelib.CharIndicate
		}
	}
	return p
}

// Profile returns the ble.Profile handed out by DiscoverProfile.
func (b *PeripheralBuilder) Profile() *blelib.Profile {
	if b.profile != nil {
		return b.profile
	}
	profile := &blelib.Profile{}
	for _, svcConfig := range b.config.Services {
		svc := &blelib.Service{UUID: blelib.MustParse(svcConfig.UUID)}
		for _, charConfig := range svcConfig.Characteristics {
			svc.Characteristics = append(svc.Characteristics, &blelib.Characteristic{
				UUID:     blelib.MustParse(charConfig.UUID),
				Property: parseProperties(charConfig.Properties),
				Value:    charConfig.Value,
			})
		}
		profile.Services = append(profile.Services, svc)
	}
	b.profile = profile
	return profile
}

// Characteristic finds a built ble.Characteristic by service and characteristic UUID.
func (b *PeripheralBuilder) Characteristic(service, uuid string) *blelib.Characteristic {
	for _, svc := range b.Profile().Services {
		if device.NormalizeUUID(svc.UUID.String()) != device.NormalizeUUID(service) {
			continue
		}
		for _, c := range svc.Characteristics {
			if device.NormalizeUUID(c.UUID.String()) == device.NormalizeUUID(uuid) {
				return c
			}
		}
	}
	panic(fmt.Sprintf("characteristic %s/%s not in profile", service, uuid))
}

// Build creates a MockGATTClient whose expectations serve the profile: reads return
// the configured values, writes and (un)subscriptions succeed. All expectations
// are optional.
func (b *PeripheralBuilder) Build() *mocks.MockGATTClient {
	client := mocks.NewMockGATTClient()
	profile := b.Profile()

	client.On("DiscoverProfile", true).Return(profile, nil).Maybe()
	client.On("CancelConnection").Return(nil).Maybe()

	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			client.On("Subscribe", char, mock.Anything, mock.Anything).Return(nil).Maybe()
			client.On("Unsubscribe", char, mock.Anything).Return(nil).Maybe()
			client.On("WriteCharacteristic", char, mock.Anything, mock.Anything).Return(nil).Maybe()
			if char.Property&blelib.CharRead != 0 {
				client.On("ReadCharacteristic", char).Return(char.Value, nil).Maybe()
			} else {
				client.On("ReadCharacteristic", char).Return(nil, fmt.Errorf("characteristic does not support read")).Maybe()
			}
		}
	}
	return client
}
