// Package queue is the bounded inbound queue of game-host events. Producers
// never block: a full queue is reported so the caller can push back.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/metrics"
)

const defaultCapacity = 10000

// Queue is a bounded FIFO of events with a single consumer.
type Queue struct {
	events   chan model.Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds e without blocking. It returns ErrFull or ErrClosed when the
// event was not accepted.
func (q *Queue) Enqueue(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	e.Queued = time.Now()
	select {
	case q.events <- e:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

// Events is the consumer side. It is closed by Close once drained.
func (q *Queue) Events() <-chan model.Event {
	return q.events
}

// Dequeued records that the consumer took e and how long it waited.
func (q *Queue) Dequeued(e *model.Event) {
	metrics.RecordQueueDequeue()
	if !e.Queued.IsZero() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(e.Queued).Microseconds()) / 1000)
	}
	q.observe()
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.events)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

func (q *Queue) observe() {
	n := len(q.events)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}

// Close stops accepting events. Buffered events are still delivered.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.events)
	return nil
}

// IsClosed reports whether Close was called.
func (q *Queue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
