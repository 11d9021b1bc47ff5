// Package queue carries grade events from the save path to the statistics
// workers.
//
// Events are coalesced per evaluation: while an evaluation is waiting, later
// events for it only bump its entry count, since one recompute covers them all.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Event is the payload flowing through the queue.
type Event = model.GradeEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It returns ErrFull or ErrClosed when the event
	// was dropped.
	Enqueue(ctx context.Context, e Event) error

	// Dequeue returns a channel receiving events until the queue is closed
	// or ctx is done.
	Dequeue(ctx context.Context) <-chan Event

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel plus an index of
// the evaluations currently waiting.
type InMemoryQueue struct {
	events   chan string
	capacity int

	mu      sync.Mutex
	waiting map[string]Event
	closed  bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.events = make(chan string, q.capacity)
	q.waiting = make(map[string]Event, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", e.EvaluationID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	if prev, ok := q.waiting[e.EvaluationID]; ok {
		prev.Entries += e.Entries
		prev.TS = e.TS
		q.waiting[e.EvaluationID] = prev
		metrics.RecordQueueEnqueue()
		return nil
	}

	select {
	case q.events <- e.EvaluationID:
		q.waiting[e.EvaluationID] = e
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue implements Queue. Each consumer gets its own channel fed from the
// shared buffer.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			var id string
			var ok bool
			select {
			case id, ok = <-q.events:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			q.mu.Lock()
			e := q.waiting[id]
			delete(q.waiting, id)
			q.updateGauges()
			q.mu.Unlock()

			select {
			case out <- e:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// updateGauges must be called with q.mu held.
func (q *InMemoryQueue) updateGauges() {
	size := len(q.waiting)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Len returns the number of evaluations waiting.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateGauges()
	return len(q.waiting)
}

// Close stops accepting events. Waiting events are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
