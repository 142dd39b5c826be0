package bledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeUUID verifies that NormalizeUUID correctly handles various UUID formats
func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "16-bit short form",
			input:    "fff0",
			expected: "fff0",
		},
		{
			name:     "16-bit uppercase with 0x prefix",
			input:    "0xFFF1",
			expected: "fff1",
		},
		{
			name:     "Full Bluetooth SIG UUID with dashes",
			input:    "00000a10-0000-1000-8000-00805f9b34fb",
			expected: "0a10",
		},
		{
			name:     "Full Bluetooth SIG UUID without dashes",
			input:    "0000180f00001000800000805f9b34fb",
			expected: "180f",
		},
		{
			name:     "Custom 128-bit UUID (not SIG base)",
			input:    "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			expected: "6e400001b5a3f393e0a9e50e24dcca9e",
		},
		{
			name:     "UUID with braces",
			input:    "{0000fff0-0000-1000-8000-00805f9b34fb}",
			expected: "fff0",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	input := []string{"0x180F", "0000-2a19-0000-1000-8000-00805f9b34fb", "0A0C"}
	assert.Equal(t, []string{"180f", "2a19", "0a0c"}, NormalizeUUIDs(input))
}

func TestLookup(t *testing.T) {
	t.Run("vendor control service", func(t *testing.T) {
		assert.Equal(t, "LELO Control Service", LookupService("FFF0"))
		assert.Equal(t, "LELO Control Service", LookupService("0000fff0-0000-1000-8000-00805f9b34fb"))
	})

	t.Run("vendor characteristics", func(t *testing.T) {
		assert.Equal(t, "Security Access", LookupCharacteristic("0x0A10"))
		assert.Equal(t, "Motor Control", LookupCharacteristic("fff1"))
		assert.Equal(t, "Accelerometer Position", LookupCharacteristic("0a0c"))
	})

	t.Run("standard entries", func(t *testing.T) {
		assert.Equal(t, "Battery Level", LookupCharacteristic("00002a19-0000-1000-8000-00805f9b34fb"))
		assert.Equal(t, "Client Characteristic Configuration", LookupDescriptor("2902"))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Empty(t, LookupService("ffff"))
		assert.Empty(t, LookupCharacteristic("ffff"))
		assert.Empty(t, LookupDescriptor("ffff"))
	})
}
