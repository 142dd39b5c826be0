// Package bledb resolves GATT UUIDs to human-readable names.
//
// The table is limited to the standard services the device exposes and the
// vendor-specific characteristics of its control service.
package bledb

import "strings"

// sigBaseSuffix is the Bluetooth SIG base UUID tail (xxxxxxxx-0000-1000-8000-00805f9b34fb).
const sigBaseSuffix = "00001000800000805f9b34fb"

var services = map[string]string{
	"1800": "Generic Access",
	"1801": "Generic Attribute",
	"180a": "Device Information",
	"180f": "Battery Service",
	"fff0": "LELO Control Service",
}

var characteristics = map[string]string{
	"2a00": "Device Name",
	"2a01": "Appearance",
	"2a19": "Battery Level",
	"2a24": "Model Number String",
	"2a25": "Serial Number String",
	"2a26": "Firmware Revision String",
	"2a29": "Manufacturer Name String",
	"0a10": "Security Access",
	"fff1": "Motor Control",
	"0a0b": "Depth Sensor",
	"0aa3": "Hall Sensor",
	"0a0c": "Accelerometer Position",
}

var descriptors = map[string]string{
	"2901": "Characteristic User Descriptor",
	"2902": "Client Characteristic Configuration",
}

// NormalizeUUID converts a UUID string to the internal form: lowercase, no dashes,
// no braces and no 0x prefix. Full 128-bit UUIDs built on the Bluetooth SIG base
// are reduced to their 16-bit short form (0000180d-0000-1000-8000-00805f9b34fb -> 180d).
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(strings.TrimSpace(uuid))
	s = strings.Trim(s, "{}")
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")

	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, sigBaseSuffix) {
		return s[4:8]
	}
	return s
}

// NormalizeUUIDs normalizes a slice of UUID strings.
func NormalizeUUIDs(uuids []string) []string {
	normalized := make([]string, len(uuids))
	for i, uuid := range uuids {
		normalized[i] = NormalizeUUID(uuid)
	}
	return normalized
}

// LookupService returns the known name of a service, or "" when unknown.
func LookupService(uuid string) string {
	return services[NormalizeUUID(uuid)]
}

// LookupCharacteristic returns the known name of a characteristic, or "" when unknown.
func LookupCharacteristic(uuid string) string {
	return characteristics[NormalizeUUID(uuid)]
}

// LookupDescriptor returns the known name of a descriptor, or "" when unknown.
func LookupDescriptor(uuid string) string {
	return descriptors[NormalizeUUID(uuid)]
}
