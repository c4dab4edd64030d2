package service

import (
	"context"
	"sync"

	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// EventQueue carries the ordered event sequence of one task submission from
// the execution adapter to the transport writer. The adapter is the only
// producer and the only closer; the writer consumes until the queue closes
// or its request context ends.
type EventQueue struct {
	ch   chan a2a.Event
	once sync.Once
}

// NewEventQueue creates a queue with the given buffer size.
func NewEventQueue(size int) *EventQueue {
	return &EventQueue{ch: make(chan a2a.Event, size)}
}

// Enqueue appends one event, giving up if ctx ends while the buffer is full.
func (q *EventQueue) Enqueue(ctx context.Context, ev a2a.Event) {
	select {
	case q.ch <- ev:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the queue.
func (q *EventQueue) Events() <-chan a2a.Event {
	return q.ch
}

// Close ends the sequence. Safe to call more than once.
func (q *EventQueue) Close() {
	q.once.Do(func() { close(q.ch) })
}
