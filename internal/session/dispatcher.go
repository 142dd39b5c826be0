package session

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/lelo/internal/codec"
)

// MotorSpeed is a motor command in percent. Negative values are treated as 0
// and values above 100 saturate at full scale.
type MotorSpeed struct {
	Main      int `json:"mainMotor"`
	Vibration int `json:"vibrationMotor"`
}

// Shutdown powers the device off.
func (s *Session) Shutdown(ctx context.Context) error {
	return s.send(ctx, "shutdown", codec.EncodeShutdown())
}

// StopMotors stops both motors.
func (s *Session) StopMotors(ctx context.Context) error {
	return s.send(ctx, "stop motors", codec.EncodeStopMotors())
}

// CalibrateAccelerometer starts accelerometer calibration.
func (s *Session) CalibrateAccelerometer(ctx context.Context) error {
	return s.send(ctx, "calibrate accelerometer", codec.EncodeCalibrate())
}

// SetMotorSpeed sets both motor levels.
func (s *Session) SetMotorSpeed(ctx context.Context, speed MotorSpeed) error {
	return s.send(ctx, "set motor speed", codec.EncodeMotorCommand(max(speed.Main, 0), max(speed.Vibration, 0)))
}

// send writes one command frame. Commands are accepted only while Authorized
// and are never retried.
func (s *Session) send(ctx context.Context, op string, frame codec.Frame) error {
	s.mu.RLock()
	state, closed := s.state, s.closed
	s.mu.RUnlock()
	if closed || state != StateAuthorized {
		return &InvalidStateError{Op: op, State: state}
	}

	writeCtx, release := s.bind(ctx)
	defer release()

	s.logger.WithFields(logrus.Fields{"op": op, "bytes": frame.String()}).Debug("Sending command")
	if err := s.transport.Write(writeCtx, codec.ServiceControl, codec.CharMotorControl, frame.Bytes()); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}
