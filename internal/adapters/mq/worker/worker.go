// Package worker recomputes evaluation statistics off the save path.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/gradebook/internal/adapters/mq/queue"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

const (
	defaultRecomputeTimeout = 10 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Store is the part of the repository a worker reads and writes.
type Store interface {
	Sheet(ctx context.Context, evaluationID string) (model.Sheet, error)
	PutStatistics(ctx context.Context, stats model.EvaluationStatistics) error
}

// Summarizer computes statistics for a sheet.
type Summarizer interface {
	Summarize(ctx context.Context, sheet model.Sheet) (model.EvaluationStatistics, error)
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Event
}

// Worker processes grade events.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the event in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker reloads the sheet named by each event, summarizes it and
// stores the result.
type InMemoryWorker struct {
	queue      Queue
	store      Store
	summarizer Summarizer
	name       string
	timeout    time.Duration
	processed  *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Store, summarizer Summarizer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		store:      store,
		summarizer: summarizer,
		name:       "worker",
		timeout:    defaultRecomputeTimeout,
		processed:  &atomic.Int64{},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.OrNop().Named("worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.Process(ctx, event); err != nil {
				w.logger.Error(ctx, "statistics recompute failed",
					logger.String("evaluation", event.EvaluationID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process recomputes the statistics of the evaluation named by event.
func (w *InMemoryWorker) Process(ctx context.Context, event queue.Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	sheet, err := w.store.Sheet(ctx, event.EvaluationID)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "load_sheet")
		return fmt.Errorf("load sheet %s: %w", event.EvaluationID, err)
	}
	stats, err := w.summarizer.Summarize(ctx, sheet)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "summarize")
		return fmt.Errorf("summarize %s: %w", event.EvaluationID, err)
	}
	if err := w.store.PutStatistics(ctx, stats); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_statistics")
		return fmt.Errorf("store statistics %s: %w", event.EvaluationID, err)
	}

	w.processed.Add(1)
	metrics.RecordStatisticsRecomputed()
	w.logger.Debug(ctx, "statistics recomputed",
		logger.String("evaluation", event.EvaluationID),
		logger.Int("entries", event.Entries),
		logger.Int("graded", stats.Graded),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers (NumCPU when < 1).
func NewPool(workerCount int, q Queue, store Store, summarizer Summarizer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.OrNop().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, store, summarizer, wopts...)
		p.workers[i].processed = &p.processed
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many recomputes completed.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Shutdown closes the queue, then waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
