package goble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/lelo/internal/bledb"
	"github.com/srg/lelo/internal/device"
)

const (
	// DefaultBLEWriteChunkSize is the maximum number of bytes written in a single ATT operation
	// (ATT_MTU 23 minus the 3 byte header).
	DefaultBLEWriteChunkSize = 20

	// DefaultBLEWriteDelay separates consecutive chunks of one long write.
	DefaultBLEWriteDelay = 10 * time.Millisecond
)

// BLECharacteristic is a discovered characteristic bound to its parent connection.
type BLECharacteristic struct {
	uuid       string
	knownName  string
	properties *BLEProperties
	BLEChar    *ble.Characteristic
	connection *BLEConnection
}

func newCharacteristic(c *ble.Characteristic, conn *BLEConnection) *BLECharacteristic {
	raw := c.UUID.String()
	return &BLECharacteristic{
		uuid:       device.NormalizeUUID(raw),
		knownName:  bledb.LookupCharacteristic(raw),
		properties: NewProperties(c.Property),
		BLEChar:    c,
		connection: conn,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) KnownName() string {
	return c.knownName
}

func (c *BLECharacteristic) GetProperties() device.Properties {
	return c.properties
}

type readResult struct {
	data []byte
	err  error
}

// Read reads the current value. The underlying ATT read cannot be aborted, so when
// ctx ends first the call returns immediately and the late result is discarded.
func (c *BLECharacteristic) Read(ctx context.Context) ([]byte, error) {
	client, err := c.connection.activeClient()
	if err != nil {
		return nil, err
	}

	done := make(chan readResult, 1)
	go func() {
		data, err := client.ReadCharacteristic(c.BLEChar)
		done <- readResult{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(res.err))
		}
		return res.data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("read characteristic %s: %w", c.uuid, contextError(ctx))
	}
}

// Write sends data, split into DefaultBLEWriteChunkSize chunks. Writes on one
// connection are serialized.
func (c *BLECharacteristic) Write(ctx context.Context, data []byte, withResponse bool) error {
	client, err := c.connection.activeClient()
	if err != nil {
		return err
	}

	noRsp := !withResponse
	if withResponse && !c.properties.CanWrite() && c.properties.CanWriteWithoutResponse() {
		noRsp = true
	}

	payload := append([]byte(nil), data...)
	done := make(chan error, 1)
	go func() {
		c.connection.writeMutex.Lock()
		defer c.connection.writeMutex.Unlock()

		for len(payload) > 0 {
			n := min(len(payload), DefaultBLEWriteChunkSize)
			if err := client.WriteCharacteristic(c.BLEChar, payload[:n], noRsp); err != nil {
				done <- fmt.Errorf("failed to write characteristic %s: %w", c.uuid, NormalizeError(err))
				return
			}
			payload = payload[n:]
			if len(payload) > 0 {
				time.Sleep(DefaultBLEWriteDelay)
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write characteristic %s: %w", c.uuid, contextError(ctx))
	}
}

// contextError reports deadline expiry as device.ErrTimeout.
func contextError(ctx context.Context) error {
	err := context.Cause(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	}
	return err
}
