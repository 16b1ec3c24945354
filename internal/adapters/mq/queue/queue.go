// Package queue buffers score records between ingestion and persistence.
package queue

import (
	"context"
	"sync"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Record is the payload flowing through the queue.
type Record = model.ScoreRecord

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds r without blocking. It returns ErrFull or ErrClosed when r
	// was not accepted.
	Enqueue(ctx context.Context, r Record) error
	// Dequeue returns a channel of records. It is closed once the queue is
	// closed and drained, or ctx is done.
	Dequeue(ctx context.Context) <-chan Record
	Len() int
	Cap() int
	// Close stops accepting records. Queued records can still be dequeued.
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	records  chan Record
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.records = make(chan Record, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a record to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r Record) error { //nolint:gocritic // hugeParam: records are passed by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordError("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordError("queue", "context_cancelled")
		return err
	}

	select {
	case q.records <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.records))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordError("queue", "full")
		return ErrFull
	}
}

// Dequeue forwards queued records until the queue drains after Close or ctx ends.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-q.records:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.records))
				select {
				case out <- r:
					metrics.RecordQueueDequeue()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of queued records.
func (q *InMemoryQueue) Len() int { return len(q.records) }

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.records)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
