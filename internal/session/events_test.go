//go:build test

package session_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/srg/lelo/internal/codec"
	"github.com/srg/lelo/internal/session"
	"github.com/srg/lelo/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	ja := testutils.NewJSONAsserter(t).WithOptions(testutils.WithOnlyExpectedKeys(false), testutils.WithIgnoredFields())
	at := time.Date(2026, 3, 1, 12, 0, 0, 5, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		event    session.Event
		expected string
	}{
		{
			name:     "found device",
			event:    session.Event{Kind: session.EventFoundDevice, Time: at, SessionID: "s1", DeviceName: "F1"},
			expected: `{"event":"foundDevice","time":"2026-03-01T11:00:00.000000005Z","session":"s1","device":"F1"}`,
		},
		{
			name:     "error connecting",
			event:    session.Event{Kind: session.EventErrorConnecting, Time: at, Message: "could not authorize"},
			expected: `{"event":"errorConnecting","time":"2026-03-01T11:00:00.000000005Z","message":"could not authorize"}`,
		},
		{
			name:     "zero value reading keeps its value",
			event:    session.Event{Kind: session.EventCharacteristicUpdate, Time: at, Name: "hall", Value: 0},
			expected: `{"event":"characteristicIntUpdate","time":"2026-03-01T11:00:00.000000005Z","name":"hall","value":0}`,
		},
		{
			name:     "unrelated fields are omitted",
			event:    session.Event{Kind: session.EventDisconnected, Time: at, Name: "stale", Motor: codec.MotorSpeed{Main: 3}},
			expected: `{"event":"disconnected","time":"2026-03-01T11:00:00.000000005Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			ja.Assert(string(data), tt.expected)
		})
	}
}

func TestEventQueue(t *testing.T) {
	t.Run("telemetry is dropped when full", func(t *testing.T) {
		q := session.NewEventQueue(2)
		for i := 0; i < 3; i++ {
			q.Emit(session.Event{Kind: session.EventCharacteristicUpdate, Value: int64(i)})
		}
		assert.Equal(t, session.QueueMetrics{Written: 2, Dropped: 1}, q.Metrics(), "Third event MUST be dropped")
		assert.Equal(t, int64(0), (<-q.C()).Value, "Order MUST be preserved")
	})

	t.Run("lifecycle waits for room", func(t *testing.T) {
		q := session.NewEventQueue(1)
		q.Emit(session.Event{Kind: session.EventFoundDevice})

		delivered := make(chan struct{})
		go func() {
			q.Emit(session.Event{Kind: session.EventDisconnected})
			close(delivered)
		}()

		select {
		case <-delivered:
			t.Fatal("Lifecycle event MUST block while the queue is full")
		case <-time.After(20 * time.Millisecond):
		}

		assert.Equal(t, session.EventFoundDevice, (<-q.C()).Kind)
		<-delivered
		assert.Equal(t, session.EventDisconnected, (<-q.C()).Kind, "Lifecycle event MUST NOT be lost")
		assert.Zero(t, q.Metrics().Dropped)
	})

	t.Run("close releases blocked emitters", func(t *testing.T) {
		q := session.NewEventQueue(1)
		q.Emit(session.Event{Kind: session.EventFoundDevice})

		released := make(chan struct{})
		go func() {
			q.Emit(session.Event{Kind: session.EventFullyInitiated})
			close(released)
		}()
		time.Sleep(10 * time.Millisecond)
		q.Close()
		q.Close()

		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatal("Close MUST release a blocked emitter")
		}
		q.Emit(session.Event{Kind: session.EventDisconnected})

		var kinds []session.EventKind
		for e := range q.C() {
			kinds = append(kinds, e.Kind)
		}
		assert.Equal(t, []session.EventKind{session.EventFoundDevice}, kinds, "Buffered events MUST stay readable")
	})
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "awaiting_user_authorization", session.StateAwaitingUserAuthorization.String())
	assert.Equal(t, "authorized", session.StateAuthorized.String())
	assert.True(t, session.EventErrorConnecting.IsLifecycle())
	assert.False(t, session.EventPositionUpdate.IsLifecycle())
}
