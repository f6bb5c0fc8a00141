// Package worker computes queued chart jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/astrolabe/internal/adapters/mq/queue"
	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/logger"
	"github.com/okian/astrolabe/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Calculator computes a chart.
type Calculator interface {
	Compute(ctx context.Context, bd model.BirthData, opts chart.Options) model.Result[*model.Chart]
}

// Saver stores computed charts.
type Saver interface {
	Save(ctx context.Context, c *model.Chart) (*model.Chart, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for chart jobs.
type InMemoryWorker struct {
	queue      Queue
	calculator Calculator
	saver      Saver
	name       string
	active     *int64

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
// saver may be nil, in which case charts are returned without an id.
func NewInMemoryWorker(q Queue, calculator Calculator, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		calculator: calculator,
		saver:      saver,
		name:       "worker",
		active:     new(int64),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
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

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				// Channel closed, worker should stop
				return
			}
			w.process(j)
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

// process computes a single job and always completes it.
func (w *InMemoryWorker) process(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	ctx := j.Context()
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(atomic.AddInt64(w.active, 1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(atomic.AddInt64(w.active, -1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		j.Fail(model.NewError(model.KindCancelled, "worker.process", err))
		return
	}

	res := w.calculator.Compute(ctx, j.Birth, j.Options)
	if !res.OK() {
		metrics.RecordWorkerError()
		w.logger.Debug(ctx, "chart job failed",
			logger.Int("index", j.Index),
			logger.String("kind", string(res.Failure.Kind)),
			logger.String("message", res.Failure.Message),
		)
		j.Complete(res)
		return
	}

	if w.saver != nil {
		stored, err := w.saver.Save(ctx, res.Value)
		if err != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "storing chart failed", logger.Int("index", j.Index), logger.Error(err))
			j.Complete(model.Fail[*model.Chart](err, res.Elapsed))
			return
		}
		res.Value = stored
	}

	j.Complete(res)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  int64

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one uses one worker per CPU.
func NewPool(workerCount int, q Queue, calculator Calculator, saver Saver) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker_pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, calculator, saver, WithName("worker_"+strconv.Itoa(i)))
		pool.workers[i].active = &pool.active
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers computing a job right now.
func (p *Pool) Active() int { return int(atomic.LoadInt64(&p.active)) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}

	metrics.UpdateWorkerCount(0)
	return nil
}
