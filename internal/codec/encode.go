package codec

import (
	"encoding/hex"
)

// MaxMotorLevel is the device's full-scale motor value.
const MaxMotorLevel = 64

const (
	opMotor      = 0x01
	opShutdown   = 0xFA
	opStopMotors = 0xFF
	opCalibrate  = 0xFF
)

// Frame is an encoded command. The zero value is an empty frame.
type Frame struct {
	b []byte
}

func newFrame(b ...byte) Frame {
	return Frame{b: b}
}

// Bytes returns a copy of the frame payload.
func (f Frame) Bytes() []byte {
	return append([]byte(nil), f.b...)
}

func (f Frame) Len() int { return len(f.b) }

// String returns the payload as lowercase hex.
func (f Frame) String() string {
	return hex.EncodeToString(f.b)
}

// Scale maps a percentage to the device range: negatives become 0, the result is
// ceil(0.64*pct) capped at MaxMotorLevel. Values above 100 saturate.
func Scale(pct int) byte {
	switch {
	case pct <= 0:
		return 0
	case pct >= 100:
		return MaxMotorLevel
	}
	// Integer form of ceil(0.64*pct).
	return byte((pct*MaxMotorLevel + 99) / 100)
}

// EncodeMotorCommand builds [0x01, main, vibration] from percentages.
func EncodeMotorCommand(mainPct, vibrationPct int) Frame {
	return newFrame(opMotor, Scale(mainPct), Scale(vibrationPct))
}

// EncodeShutdown powers the device off.
func EncodeShutdown() Frame {
	return newFrame(opMotor, opShutdown)
}

// EncodeStopMotors stops both motors.
func EncodeStopMotors() Frame {
	return newFrame(opMotor, opStopMotors)
}

// EncodeCalibrate starts accelerometer calibration.
func EncodeCalibrate() Frame {
	return newFrame(opCalibrate, opCalibrate, opCalibrate)
}
