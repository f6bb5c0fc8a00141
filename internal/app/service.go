// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	chartqueue "github.com/okian/astrolabe/internal/adapters/mq/queue"
	workerpool "github.com/okian/astrolabe/internal/adapters/mq/worker"
	repository "github.com/okian/astrolabe/internal/adapters/repository"
	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/synastry"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/pkg/logger"
	"github.com/okian/astrolabe/pkg/metrics"
)

const defaultMaxBatchSize = 1000

// Sentinel errors returned by the service.
var (
	ErrNoProvider     = errors.New("no ephemeris provider configured")
	ErrNotStarted     = errors.New("service not started")
	ErrMissingCharts  = errors.New("both charts are required")
	ErrMixedSynastry  = errors.New("use either chart ids or birth data, not both")
	ErrEmptyBatch     = errors.New("batch has no items")
	ErrBatchTooLarge  = errors.New("batch exceeds the maximum size")
	errQueueFull      = errors.New("chart queue is full")
	errServiceStopped = errors.New("service stopped before the job completed")
)

// Service implements the API dependencies for the chart service.
type Service struct {
	mu sync.RWMutex

	// Core components
	provider  ephemeris.Provider
	assembler *chart.Assembler
	engine    *synastry.Engine
	store     repository.Store
	queue     *chartqueue.InMemoryQueue
	pool      *workerpool.Pool

	// Configuration
	workerCount   int
	queueSize     int
	storeCapacity int
	maxBatchSize  int
	chartOpts     []chart.Option
	synastryOpts  []synastry.Option

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of batch worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the batch queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStoreCapacity bounds the number of charts kept for lookup by id.
func WithStoreCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.storeCapacity = capacity
		}
	}
}

// WithMaxBatchSize caps the number of items in one batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// WithChartOptions configures the chart assembler.
func WithChartOptions(opts ...chart.Option) Option {
	return func(s *Service) {
		s.chartOpts = append(s.chartOpts, opts...)
	}
}

// WithSynastryOptions configures the synastry engine.
func WithSynastryOptions(opts ...synastry.Option) Option {
	return func(s *Service) {
		s.synastryOpts = append(s.synastryOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service that reads planetary positions from provider.
func New(provider ephemeris.Provider, opts ...Option) *Service {
	s := &Service{
		provider:      provider,
		workerCount:   runtime.NumCPU(),
		queueSize:     1024,
		storeCapacity: 10_000,
		maxBatchSize:  defaultMaxBatchSize,
		stopCh:        make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	s.assembler = chart.NewAssembler(provider, s.chartOpts...)
	s.engine = synastry.NewEngine(s.synastryOpts...)
	s.store = repository.NewMemoryStore(repository.WithCapacity(s.storeCapacity))

	return s
}

// Start initializes and starts the batch queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.provider == nil {
		return fmt.Errorf("start service: %w", ErrNoProvider)
	}

	s.logger.Info(ctx, "starting chart service...", logger.String("ephemeris", s.provider.Name()))

	s.queue = chartqueue.NewInMemoryQueue(chartqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.assembler, s.store)
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.started = true
	s.logger.Info(ctx, "chart service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("storeCapacity", s.storeCapacity),
	)

	return nil
}

// Stop gracefully shuts down the service. Queued batch items are drained
// before Stop returns.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping chart service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	close(s.stopCh)

	s.started = false
	s.logger.Info(ctx, "chart service stopped")
}

// ComputeChart computes a chart and stores it for later lookup by id.
func (s *Service) ComputeChart(ctx context.Context, req types.ChartRequest) model.Result[*model.Chart] { //nolint:gocritic // hugeParam: request is a value type
	res := s.assembler.Compute(ctx, req.BirthData, req.Options())
	if !res.OK() {
		return res
	}
	stored, err := s.store.Save(ctx, res.Value)
	if err != nil {
		return model.Fail[*model.Chart](err, res.Elapsed)
	}
	res.Value = stored
	return res
}

// Chart returns a previously computed chart.
func (s *Service) Chart(ctx context.Context, id string) (*model.Chart, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("chart %q: %w", id, err)
	}
	return c, nil
}

// ComputeBatch computes every request through the worker pool. The result
// slice matches the request order. Items that do not fit in the queue fail
// with a backpressure error while the rest are still computed.
func (s *Service) ComputeBatch(ctx context.Context, reqs []types.ChartRequest) ([]model.Result[*model.Chart], error) {
	switch {
	case len(reqs) == 0:
		return nil, model.NewError(model.KindInvalidInput, "service.batch", ErrEmptyBatch)
	case len(reqs) > s.maxBatchSize:
		return nil, model.NewError(model.KindInvalidInput, "service.batch",
			fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(reqs), s.maxBatchSize))
	}

	s.mu.RLock()
	started, q, stopCh := s.started, s.queue, s.stopCh
	s.mu.RUnlock()
	if !started {
		return nil, model.NewError(model.KindInternal, "service.batch", ErrNotStarted)
	}

	start := time.Now()
	results := make([]model.Result[*model.Chart], len(reqs))
	done := make([]bool, len(reqs))
	reply := make(chan chartqueue.Completion, len(reqs))

	pending := 0
	for i := range reqs {
		job := chartqueue.Job{
			Ctx:     ctx,
			Index:   i,
			Birth:   reqs[i].BirthData,
			Options: reqs[i].Options(),
			Reply:   reply,
		}
		if !q.Enqueue(ctx, job) {
			results[i] = model.Fail[*model.Chart](
				model.NewError(model.KindBackpressure, "service.batch", errQueueFull), time.Since(start))
			done[i] = true
			continue
		}
		pending++
	}

	for pending > 0 {
		select {
		case c := <-reply:
			results[c.Index] = c.Result
			done[c.Index] = true
			pending--
		case <-ctx.Done():
			fillPending(results, done, model.NewError(model.KindCancelled, "service.batch", ctx.Err()), time.Since(start))
			return results, nil
		case <-stopCh:
			fillPending(results, done, model.NewError(model.KindInternal, "service.batch", errServiceStopped), time.Since(start))
			return results, nil
		}
	}

	s.logger.Debug(ctx, "batch computed",
		logger.Int("items", len(reqs)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func fillPending(results []model.Result[*model.Chart], done []bool, err error, elapsed time.Duration) {
	for i := range results {
		if !done[i] {
			results[i] = model.Fail[*model.Chart](err, elapsed)
		}
	}
}

// ComputeSynastry compares two charts, looked up by id or computed from
// birth data. Fresh charts are computed in parallel and are not stored.
func (s *Service) ComputeSynastry(ctx context.Context, req types.SynastryRequest) model.Result[*model.CompatibilityReport] {
	start := time.Now()
	fail := func(err error) model.Result[*model.CompatibilityReport] {
		return model.Fail[*model.CompatibilityReport](err, time.Since(start))
	}

	var a, b *model.Chart
	switch {
	case req.ByID() && (req.PersonA != nil || req.PersonB != nil):
		return fail(model.NewError(model.KindInvalidInput, "service.synastry", ErrMixedSynastry))
	case req.ByID():
		if req.ChartA == "" || req.ChartB == "" {
			return fail(model.NewError(model.KindInvalidInput, "service.synastry", ErrMissingCharts))
		}
		var err error
		if a, err = s.Chart(ctx, req.ChartA); err != nil {
			return fail(err)
		}
		if b, err = s.Chart(ctx, req.ChartB); err != nil {
			return fail(err)
		}
	default:
		if req.PersonA == nil || req.PersonB == nil {
			return fail(model.NewError(model.KindInvalidInput, "service.synastry", ErrMissingCharts))
		}
		var err error
		if a, b, err = s.computePair(ctx, *req.PersonA, *req.PersonB); err != nil {
			return fail(err)
		}
	}

	res := s.engine.Compute(ctx, a, b)
	res.Elapsed = time.Since(start)
	return res
}

func (s *Service) computePair(ctx context.Context, ra, rb types.ChartRequest) (*model.Chart, *model.Chart, error) { //nolint:gocritic // hugeParam: requests are value types
	var a, b *model.Chart
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := s.assembler.Compute(gctx, ra.BirthData, ra.Options())
		if !res.OK() {
			return fmt.Errorf("person_a: %w", res.Err())
		}
		a = res.Value
		return nil
	})
	g.Go(func() error {
		res := s.assembler.Compute(gctx, rb.BirthData, rb.Options())
		if !res.OK() {
			return fmt.Errorf("person_b: %w", res.Err())
		}
		b = res.Value
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// Sky returns the sky at instant.
func (s *Service) Sky(ctx context.Context, instant time.Time) model.Result[*model.SkySnapshot] {
	return s.assembler.Sky(ctx, instant)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"storeCapacity": s.storeCapacity,
		"storedCharts":  s.store.Count(ctx),
	}
	if s.provider != nil {
		stats["ephemeris"] = s.provider.Name()
	}
	if sized, ok := s.provider.(interface{ Len() int }); ok {
		stats["ephemerisEntries"] = sized.Len()
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
