//go:build test

package testutils

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/srg/lelo/internal/device"
	"github.com/srg/lelo/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked advertisements with a fluent API.
type AdvertisementBuilder struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	RSSI        int      `json:"rssi"`
	Services    []string `json:"services"`
	ManufData   []byte   `json:"manufacturerData"`
	TxPower     int      `json:"txPower"`
	Connectable bool     `json:"connectable"`
}

// NewAdvertisementBuilder starts a connectable advertisement with no TX power.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{RSSI: -50, TxPower: 127, Connectable: true}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.RSSI = rssi
	return b
}

// WithServices adds service UUIDs in any accepted spelling ("FFF0", "0xfff0", 128-bit).
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.Services = append(b.Services, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.Connectable = c
	return b
}

// FromJSON overlays fields from a JSON document. Panics on invalid JSON.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), b); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: %v", err))
	}
	return b
}

// Build returns a mock whose expectations are all optional, so code under test
// may read any subset of fields.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	adv := &mocks.MockAdvertisement{}
	adv.On("LocalName").Return(b.Name).Maybe()
	adv.On("Addr").Return(b.Address).Maybe()
	adv.On("RSSI").Return(b.RSSI).Maybe()
	adv.On("Services").Return(append([]string(nil), b.Services...)).Maybe()
	adv.On("ManufacturerData").Return(b.ManufData).Maybe()
	adv.On("TxPowerLevel").Return(b.TxPower).Maybe()
	adv.On("Connectable").Return(b.Connectable).Maybe()
	return adv
}

// FakeScanner is a device.ScanningDevice replaying advertisements.
type FakeScanner struct {
	Advertisements []device.Advertisement
	Err            error
	// Block keeps Scan running until its context ends, like a real scan.
	Block bool
}

func (f *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	for _, adv := range f.Advertisements {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		handler(adv)
	}
	if f.Err != nil {
		return f.Err
	}
	if f.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
