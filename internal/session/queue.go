package session

import (
	"sync"
	"sync/atomic"
)

// EventQueue is a bounded, channel-backed EventSink.
//
// Lifecycle events block the emitter until there is room, so they are never lost.
// Telemetry events are dropped when the buffer is full and counted in Metrics.
// Consumers read from C() until it is closed by Close.
type EventQueue struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	once    sync.Once
	metrics QueueMetrics
}

// QueueMetrics are lock-free counters of an EventQueue.
type QueueMetrics struct {
	Written int64
	Dropped int64
}

// NewEventQueue creates a queue with the given capacity (minimum 1).
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventQueue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// C returns the receive side of the queue.
func (q *EventQueue) C() <-chan Event {
	return q.ch
}

// Emit implements EventSink. Events emitted after Close are discarded.
func (q *EventQueue) Emit(e Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	if e.Kind.IsLifecycle() {
		select {
		case q.ch <- e:
			atomic.AddInt64(&q.metrics.Written, 1)
		case <-q.done:
		}
		return
	}

	select {
	case q.ch <- e:
		atomic.AddInt64(&q.metrics.Written, 1)
	default:
		atomic.AddInt64(&q.metrics.Dropped, 1)
	}
}

// Close releases blocked emitters and closes the channel. Buffered events stay readable.
func (q *EventQueue) Close() {
	q.once.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *EventQueue) Len() int { return len(q.ch) }

// Metrics returns a snapshot of the counters.
func (q *EventQueue) Metrics() QueueMetrics {
	return QueueMetrics{
		Written: atomic.LoadInt64(&q.metrics.Written),
		Dropped: atomic.LoadInt64(&q.metrics.Dropped),
	}
}
