// Package queue carries chart jobs from request handlers to workers.
//
// The queue is bounded: when it is full, Enqueue fails immediately and the
// caller reports backpressure instead of waiting.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Completion is the outcome of one job.
type Completion struct {
	Index  int
	Result model.Result[*model.Chart]
}

// Job is a chart calculation waiting for a worker. Reply must have room for
// one Completion so that completing a job never blocks.
type Job struct {
	Ctx      context.Context //nolint:containedctx // request scope travels with the job
	Index    int
	Birth    model.BirthData
	Options  chart.Options
	Enqueued time.Time
	Reply    chan<- Completion
}

// Context returns the job's request context, or Background if none was set.
func (j Job) Context() context.Context {
	if j.Ctx == nil {
		return context.Background()
	}
	return j.Ctx
}

// Complete delivers res to the job's submitter.
func (j Job) Complete(res model.Result[*model.Chart]) {
	if j.Reply != nil {
		j.Reply <- Completion{Index: j.Index, Result: res}
	}
}

// Fail completes the job with a failure.
func (j Job) Fail(err error) {
	j.Complete(model.Fail[*model.Chart](err, time.Since(j.Enqueued)))
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new jobs can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordQueueEnqueueError()
		return false
	}

	if j.Enqueued.IsZero() {
		j.Enqueued = time.Now()
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
// A job taken off the queue after ctx is done is failed as cancelled.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)

	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.RecordQueueDequeue()
				q.updateGauges()
			case <-ctx.Done():
				j.Fail(model.NewError(model.KindCancelled, "queue.dequeue", ctx.Err()))
				return
			}
		}
	}()

	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.updateGauges()
}

func (q *InMemoryQueue) updateGauges() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue. Jobs already queued are still
// delivered to consumers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
