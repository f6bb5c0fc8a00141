package loadgen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/pkg/logger"
)

// Failure buckets that are not calculation kinds.
const (
	kindTransport = "transport"
	kindRejected  = "rejected"
)

// PercentageMultiplier converts a ratio to a percentage.
const PercentageMultiplier = 100

// stored is a chart the server reported as saved.
type stored struct {
	id        string
	julianDay float64
}

// collector gathers per-request outcomes from concurrent workers.
type collector struct {
	submitted  int64
	successful int64
	failed     int64
	synastries int64

	mu     sync.Mutex
	kinds  map[string]int
	charts []stored
}

func newCollector() *collector {
	return &collector{kinds: make(map[string]int)}
}

func (c *collector) fail(kind string) {
	atomic.AddInt64(&c.failed, 1)
	c.mu.Lock()
	c.kinds[kind]++
	c.mu.Unlock()
}

func (c *collector) keep(ch *model.Chart) {
	if ch == nil || ch.ID == "" {
		return
	}
	c.mu.Lock()
	c.charts = append(c.charts, stored{id: ch.ID, julianDay: ch.JulianDay})
	c.mu.Unlock()
}

// Run executes a complete load test against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	stats := &Stats{
		StartTime:    time.Now(),
		FailedByKind: make(map[string]int),
	}
	log := logger.Get().Named("loadgen")
	log.Info(ctx, "starting astrolabe load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Float64("synastryRatio", cfg.SynastryRatio),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate requests
	reqs, err := generateRequests(ctx, cfg.Requests+cfg.BatchSize, cfg.From, cfg.To)
	if err != nil {
		return nil, fmt.Errorf("request generation failed: %w", err)
	}
	stats.Generated = len(reqs)

	// Step 3: Submit single requests concurrently
	col := newCollector()
	submit(ctx, cfg, client, reqs[:cfg.Requests], col)

	// Step 4: One batch request
	if cfg.BatchSize > 0 {
		if err := submitBatch(ctx, client, reqs[cfg.Requests:], col, stats); err != nil {
			return nil, fmt.Errorf("batch submission failed: %w", err)
		}
	}

	stats.Submitted = int(atomic.LoadInt64(&col.submitted))
	stats.Successful = int(atomic.LoadInt64(&col.successful))
	stats.Failed = int(atomic.LoadInt64(&col.failed))
	stats.Synastries = int(atomic.LoadInt64(&col.synastries))
	for k, v := range col.kinds {
		stats.FailedByKind[k] = v
	}

	// Step 5: Read stored charts back
	verified, err := verify(ctx, client, col.charts, cfg.VerifyCount)
	stats.Verified = verified
	if err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	log.Info(ctx, "load test completed")
	return stats, nil
}

// submit sends reqs through cfg.Workers goroutines. Each request is sent as
// a chart, or with probability SynastryRatio as a synastry with the
// previous request.
func submit(ctx context.Context, cfg *Config, client *HTTPClient, reqs []types.ChartRequest, col *collector) {
	log := logger.Get().Named("loadgen")
	indexes := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				atomic.AddInt64(&col.submitted, 1)
				if i > 0 && getRandomFloat() < cfg.SynastryRatio {
					atomic.AddInt64(&col.synastries, 1)
					a, b := reqs[i-1], reqs[i]
					env, err := client.Synastry(ctx, types.SynastryRequest{PersonA: &a, PersonB: &b})
					record(ctx, log, cfg.Verbose, col, err, env.Error)
					continue
				}
				env, err := client.Chart(ctx, reqs[i])
				if record(ctx, log, cfg.Verbose, col, err, env.Error) {
					col.keep(env.Data)
				}
			}
		}()
	}

	go func() {
		defer close(indexes)
		for i := range reqs {
			select {
			case <-ctx.Done():
				return
			case indexes <- i:
			}
		}
	}()

	wg.Wait()
}

// record classifies one response and reports whether it succeeded.
func record(ctx context.Context, log logger.Logger, verbose bool, col *collector, err error, failure *model.Failure) bool {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		col.fail(kindRejected)
	case err != nil:
		col.fail(kindTransport)
	case failure != nil:
		col.fail(string(failure.Kind))
	default:
		atomic.AddInt64(&col.successful, 1)
		return true
	}
	if verbose {
		var fields []logger.Field
		if err != nil {
			fields = append(fields, logger.Error(err))
		}
		if failure != nil {
			fields = append(fields, logger.String("kind", string(failure.Kind)), logger.String("message", failure.Message))
		}
		log.Warn(ctx, "request failed", fields...)
	}
	return false
}

func submitBatch(ctx context.Context, client *HTTPClient, reqs []types.ChartRequest, col *collector, stats *Stats) error {
	resp, err := client.Batch(ctx, reqs)
	if err != nil {
		return err
	}
	stats.BatchItems = len(resp.Items)
	for i := range resp.Items {
		if resp.Items[i].Error != nil {
			stats.BatchFailed++
			col.fail(string(resp.Items[i].Error.Kind))
			continue
		}
		col.keep(resp.Items[i].Data)
	}
	return nil
}

// verify reads up to n stored charts back and checks they match what the
// server returned when computing them.
func verify(ctx context.Context, client *HTTPClient, charts []stored, n int) (int, error) {
	if n > len(charts) {
		n = len(charts)
	}
	for i := 0; i < n; i++ {
		got, err := client.Stored(ctx, charts[i].id)
		if err != nil {
			return i, fmt.Errorf("chart %s: %w", charts[i].id, err)
		}
		if got.ID != charts[i].id || got.JulianDay != charts[i].julianDay {
			return i, fmt.Errorf("%w: chart %s", ErrMismatch, charts[i].id)
		}
	}
	return n, nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, requestsPerSecond float64

	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("synastries", stats.Synastries),
		logger.Int("batchItems", stats.BatchItems),
		logger.Int("batchFailed", stats.BatchFailed),
		logger.Int("verified", stats.Verified),
		logger.Any("failedByKind", stats.FailedByKind),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
