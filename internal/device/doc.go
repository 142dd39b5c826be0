// Package device provides transport-neutral Bluetooth Low Energy abstractions
// used by the session layer.
//
// It covers:
//   - Connection lifecycle (connect, disconnect, disconnect notification)
//   - GATT service and characteristic lookup by 16-bit or 128-bit UUID
//   - Context-bounded characteristic reads and writes
//   - Notification subscriptions with a single handler per characteristic
//
// The go-ble backed implementation lives in the go-ble subpackage.
package device
