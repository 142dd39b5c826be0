package codec

import "fmt"

// ServiceID is a 16-bit GATT service UUID.
type ServiceID uint16

// CharacteristicID is a 16-bit GATT characteristic UUID.
type CharacteristicID uint16

const (
	ServiceControl    ServiceID = 0xFFF0
	ServiceBattery    ServiceID = 0x180F
	ServiceDeviceInfo ServiceID = 0x180A
)

const (
	CharSecurityAccess CharacteristicID = 0x0A10
	CharMotorControl   CharacteristicID = 0xFFF1
	CharBatteryLevel   CharacteristicID = 0x2A19
	CharDepth          CharacteristicID = 0x0A0B
	CharHall           CharacteristicID = 0x0AA3
	CharPosition       CharacteristicID = 0x0A0C
)

// UUID renders the short form used for GATT lookups, e.g. "fff0".
func (s ServiceID) UUID() string { return fmt.Sprintf("%04x", uint16(s)) }

func (s ServiceID) String() string { return "0x" + fmt.Sprintf("%04X", uint16(s)) }

// UUID renders the short form used for GATT lookups, e.g. "0a10".
func (c CharacteristicID) UUID() string { return fmt.Sprintf("%04x", uint16(c)) }

func (c CharacteristicID) String() string { return "0x" + fmt.Sprintf("%04X", uint16(c)) }
