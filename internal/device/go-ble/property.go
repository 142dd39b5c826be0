package goble

import (
	"github.com/go-ble/ble"
)

// BLEProperties wraps the ble.Property bit set of a characteristic.
type BLEProperties struct {
	value ble.Property
}

// NewProperties creates Properties from ble.Property bit flags.
func NewProperties(p ble.Property) *BLEProperties {
	return &BLEProperties{value: p}
}

var propertyNames = []struct {
	flag ble.Property
	name string
}{
	{ble.CharBroadcast, "Broadcast"},
	{ble.CharRead, "Read"},
	{ble.CharWriteNR, "WriteWithoutResponse"},
	{ble.CharWrite, "Write"},
	{ble.CharNotify, "Notify"},
	{ble.CharIndicate, "Indicate"},
	{ble.CharSignedWrite, "AuthenticatedSignedWrites"},
	{ble.CharExtended, "ExtendedProperties"},
}

func (p *BLEProperties) CanRead() bool                 { return p.value&ble.CharRead != 0 }
func (p *BLEProperties) CanWrite() bool                { return p.value&ble.CharWrite != 0 }
func (p *BLEProperties) CanWriteWithoutResponse() bool { return p.value&ble.CharWriteNR != 0 }
func (p *BLEProperties) CanNotify() bool               { return p.value&ble.CharNotify != 0 }
func (p *BLEProperties) CanIndicate() bool             { return p.value&ble.CharIndicate != 0 }

// Names returns the human-readable names of the set flags, in bit order.
func (p *BLEProperties) Names() []string {
	names := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p.value&pn.flag != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}
