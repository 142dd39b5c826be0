//go:build test

package testutils

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/srg/lelo/internal/session"
)

// EventRecorder is a session.EventSink that keeps every event for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []session.Event
	// OnEmit, when set, runs after an event is recorded.
	OnEmit func(session.Event)
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Emit(e session.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	hook := r.OnEmit
	r.mu.Unlock()
	if hook != nil {
		hook(e)
	}
}

func (r *EventRecorder) Events() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Event(nil), r.events...)
}

func (r *EventRecorder) Kinds() []session.EventKind {
	events := r.Events()
	kinds := make([]session.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// LifecycleKinds returns the kinds of lifecycle events only, in order.
func (r *EventRecorder) LifecycleKinds() []session.EventKind {
	var kinds []session.EventKind
	for _, e := range r.Events() {
		if e.Kind.IsLifecycle() {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func (r *EventRecorder) Count(kind session.EventKind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Of returns the events of one kind, in order.
func (r *EventRecorder) Of(kind session.EventKind) []session.Event {
	var out []session.Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// WaitForCount polls until at least n events of kind were recorded.
func (r *EventRecorder) WaitForCount(kind session.EventKind, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count(kind) >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// WaitFor polls until an event of kind was recorded and returns the first one.
func (r *EventRecorder) WaitFor(kind session.EventKind, timeout time.Duration) (session.Event, bool) {
	if !r.WaitForCount(kind, 1, timeout) {
		return session.Event{}, false
	}
	return r.Of(kind)[0], true
}

// JSON renders all recorded events as a JSON array.
func (r *EventRecorder) JSON() string {
	data, err := json.Marshal(r.Events())
	if err != nil {
		panic(err)
	}
	return string(data)
}
