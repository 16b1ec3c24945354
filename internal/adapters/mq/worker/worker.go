package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gradestats/internal/adapters/repository"
	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()

// Record is what workers read off the queue.
type Record = model.ScoreRecord

// Inserter persists one record.
type Inserter interface {
	Insert(ctx context.Context, r model.ScoreRecord) error
}

// Queue defines how workers receive records.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Record
}

// InMemoryWorker moves records from a queue into a store.
type InMemoryWorker struct {
	queue     Queue
	store     Inserter
	name      string
	onFailure FailureFunc

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, store Inserter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		store:     store,
		name:      "worker",
		onFailure: func(Record, error) {},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run consumes records until the queue is closed and drained or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for r := range w.queue.Dequeue(ctx) {
		if err := w.process(ctx, r); err != nil {
			w.logger.Error(ctx, "error persisting record", logger.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, r Record) error { //nolint:gocritic // hugeParam: records are passed by value through the channel
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	err := w.store.Insert(ctx, r)
	switch {
	case err == nil:
		metrics.RecordIngested()
		return nil
	case errors.Is(err, repository.ErrDuplicate):
		metrics.RecordDuplicate()
		w.logger.Debug(ctx, "duplicate record", logger.String("record_id", r.RecordID))
		return nil
	default:
		metrics.RecordFailed()
		metrics.RecordWorkerError()
		metrics.RecordError("worker", "insert_failed")
		w.onFailure(r, err)
		return fmt.Errorf("insert record %s: %w", r.RecordID, err)
	}
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	startOnce sync.Once
	started   atomic.Bool
	logger    logger.Logger
}

// NewPool creates workerCount workers. A count below 1 uses a multiple of NumCPU.
func NewPool(workerCount int, q Queue, store Inserter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, store, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker. Subsequent calls do nothing.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			go w.Run(ctx)
		}
		p.started.Store(true)
		metrics.UpdateWorkerCount(len(p.workers))
		p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
	})
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	defer metrics.UpdateWorkerCount(0)
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", ctx.Err())
		}
	}
	return nil
}
