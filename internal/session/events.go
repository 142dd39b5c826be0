package session

import (
	"encoding/json"
	"time"

	"github.com/srg/lelo/internal/codec"
)

// EventKind names an outbound event. Values are the stable wire names.
type EventKind string

const (
	EventFoundDevice            EventKind = "foundDevice"
	EventSecurityAcceptRequired EventKind = "securityAcceptRequired"
	EventFullyInitiated         EventKind = "fullyInitiated"
	EventErrorConnecting        EventKind = "errorConnecting"
	EventDisconnected           EventKind = "disconnected"
	EventMotorSpeedUpdate       EventKind = "updateMotorSpeed"
	EventPositionUpdate         EventKind = "updatePosition"
	EventCharacteristicUpdate   EventKind = "characteristicIntUpdate"
)

// IsLifecycle reports whether the kind describes a session lifecycle step.
// Lifecycle events are never dropped by queues.
func (k EventKind) IsLifecycle() bool {
	switch k {
	case EventFoundDevice, EventSecurityAcceptRequired, EventFullyInitiated, EventErrorConnecting, EventDisconnected:
		return true
	default:
		return false
	}
}

// Event is one outbound notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind       EventKind
	Time       time.Time
	SessionID  string
	DeviceName string           // foundDevice, fullyInitiated
	Message    string           // errorConnecting
	Name       string           // characteristicIntUpdate
	Value      int64            // characteristicIntUpdate
	Motor      codec.MotorSpeed // updateMotorSpeed
	Position   codec.Position   // updatePosition
}

type motorJSON struct {
	MainMotor      int `json:"mainMotor"`
	VibrationMotor int `json:"vibrationMotor"`
}

type eventJSON struct {
	Event    EventKind       `json:"event"`
	Time     string          `json:"time"`
	Session  string          `json:"session,omitempty"`
	Device   string          `json:"device,omitempty"`
	Message  string          `json:"message,omitempty"`
	Name     string          `json:"name,omitempty"`
	Value    *int64          `json:"value,omitempty"`
	Motor    *motorJSON      `json:"motor,omitempty"`
	Position *codec.Position `json:"position,omitempty"`
}

// MarshalJSON emits {"event": kind, "time": ..., <kind payload>}.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		Event:   e.Kind,
		Time:    e.Time.UTC().Format(time.RFC3339Nano),
		Session: e.SessionID,
	}
	switch e.Kind {
	case EventFoundDevice, EventFullyInitiated:
		out.Device = e.DeviceName
	case EventErrorConnecting:
		out.Message = e.Message
	case EventCharacteristicUpdate:
		out.Name = e.Name
		v := e.Value
		out.Value = &v
	case EventMotorSpeedUpdate:
		out.Motor = &motorJSON{MainMotor: e.Motor.Main, VibrationMotor: e.Motor.Vibration}
	case EventPositionUpdate:
		p := e.Position
		out.Position = &p
	}
	return json.Marshal(out)
}

// EventSink receives session events. Emit is called from session goroutines and
// must not call back into the session synchronously.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }

// Reading is one named numeric value extracted from a notification.
type Reading struct {
	Name  string
	Value int64
}
