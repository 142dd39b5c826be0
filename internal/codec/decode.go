package codec

import (
	"encoding/binary"
)

// MotorSpeed holds raw device-scale motor levels.
type MotorSpeed struct {
	Main      int `json:"main"`
	Vibration int `json:"vibration"`
}

// StatusFlags is the position sample status byte.
type StatusFlags byte

const (
	flagZPositive   StatusFlags = 1 << 0
	flagYPositive   StatusFlags = 1 << 1
	flagXPositive   StatusFlags = 1 << 2
	flagOrientation StatusFlags = 1 << 5
	flagDirection   StatusFlags = 1 << 6
	flagTrigger     StatusFlags = 1 << 7
)

// Trigger reports bit 7. Its meaning is undocumented.
func (f StatusFlags) Trigger() bool { return f&flagTrigger != 0 }

// Orientation reports bit 5. Its meaning is undocumented.
func (f StatusFlags) Orientation() bool { return f&flagOrientation != 0 }

// Position is one accelerometer sample.
type Position struct {
	X         int         `json:"x"`
	Y         int         `json:"y"`
	Z         int         `json:"z"`
	Direction bool        `json:"direction"`
	Flags     StatusFlags `json:"-"`
}

// Decoder turns a raw characteristic value into a single number.
type Decoder func([]byte) (int64, error)

var (
	_ Decoder = DecodeSignedInt8
	_ Decoder = DecodeSignedInt16BE
)

// DecodeMotorSpeedReply reads the main and vibration levels at offsets 1 and 2.
// Byte 0 is ignored.
func DecodeMotorSpeedReply(data []byte) (MotorSpeed, error) {
	if err := need("motor speed reply", data, 3); err != nil {
		return MotorSpeed{}, err
	}
	return MotorSpeed{Main: int(data[1]), Vibration: int(data[2])}, nil
}

// DecodeSignedInt8 interprets byte 0 as a signed 8-bit value.
func DecodeSignedInt8(data []byte) (int64, error) {
	if err := need("int8", data, 1); err != nil {
		return 0, err
	}
	return int64(int8(data[0])), nil
}

// DecodeSignedInt16BE interprets bytes 0..1 as a signed big-endian 16-bit value.
func DecodeSignedInt16BE(data []byte) (int64, error) {
	if err := need("int16", data, 2); err != nil {
		return 0, err
	}
	return int64(int16(binary.BigEndian.Uint16(data))), nil
}

// DecodePositionSample reads three unsigned magnitudes at 0, 2 and 4 and the status
// byte at 6. A clear sign bit (2 for x, 1 for y, 0 for z) negates the axis.
func DecodePositionSample(data []byte) (Position, error) {
	if err := need("position sample", data, 7); err != nil {
		return Position{}, err
	}
	flags := StatusFlags(data[6])
	axis := func(off int, positive StatusFlags) int {
		v := int(binary.BigEndian.Uint16(data[off:]))
		if flags&positive == 0 {
			return -v
		}
		return v
	}
	return Position{
		X:         axis(0, flagXPositive),
		Y:         axis(2, flagYPositive),
		Z:         axis(4, flagZPositive),
		Direction: flags&flagDirection != 0,
		Flags:     flags,
	}, nil
}

// DecodeSecurityToken reads the security characteristic as a big-endian uint64.
// Zero means the user has not yet accepted the connection on the device.
func DecodeSecurityToken(data []byte) (uint64, error) {
	if err := need("security token", data, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// AuthorizationGranted reports whether the security read-back signals success
// (byte 0 as signed 8-bit equals 1).
func AuthorizationGranted(data []byte) (bool, error) {
	v, err := DecodeSignedInt8(data)
	if err != nil {
		return false, err
	}
	return v == 1, nil
}
