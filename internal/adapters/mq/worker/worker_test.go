package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/astrolabe/internal/adapters/mq/queue"
	worker "github.com/okian/astrolabe/internal/adapters/mq/worker"
	chart "github.com/okian/astrolabe/internal/domain/chart"
	model "github.com/okian/astrolabe/internal/domain/model"
	logging "github.com/okian/astrolabe/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		jobs: make(chan queue.Job, 10),
	}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	mq.jobs <- j
}

type mockCalculator struct {
	mu     sync.Mutex
	calls  int
	errs   map[string]error
	delay  time.Duration
	active int64
	peak   int64
}

func newMockCalculator() *mockCalculator {
	return &mockCalculator{errs: make(map[string]error)}
}

func (mc *mockCalculator) Compute(ctx context.Context, bd model.BirthData, _ chart.Options) model.Result[*model.Chart] {
	n := atomic.AddInt64(&mc.active, 1)
	defer atomic.AddInt64(&mc.active, -1)
	for {
		p := atomic.LoadInt64(&mc.peak)
		if n <= p || atomic.CompareAndSwapInt64(&mc.peak, p, n) {
			break
		}
	}

	mc.mu.Lock()
	mc.calls++
	err := mc.errs[bd.Name]
	delay := mc.delay
	mc.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return model.Fail[*model.Chart](err, time.Millisecond)
	}
	return model.Succeed(&model.Chart{JulianDay: 2451545}, time.Millisecond, model.AccuracyHigh)
}

func (mc *mockCalculator) setError(name string, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errs[name] = err
}

func (mc *mockCalculator) callCount() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.calls
}

type mockSaver struct {
	mu    sync.Mutex
	saved int
	err   error
}

func (ms *mockSaver) Save(_ context.Context, c *model.Chart) (*model.Chart, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return nil, ms.err
	}
	ms.saved++
	out := *c
	out.ID = "chart-id"
	return &out, nil
}

func (ms *mockSaver) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.saved
}

func birthJob(i int, name string, reply chan<- queue.Completion) queue.Job {
	return queue.Job{
		Index:    i,
		Birth:    model.BirthData{Name: name},
		Enqueued: time.Now(),
		Reply:    reply,
	}
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given an InMemoryWorker", t, func() {
		q := newMockQueue()
		calc := newMockCalculator()
		saver := &mockSaver{}
		w := worker.NewInMemoryWorker(q, calc, saver, worker.WithName("test_worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job succeeds", func() {
			reply := make(chan queue.Completion, 1)
			q.add(birthJob(3, "ok", reply))

			c := <-reply

			convey.Convey("Then the chart is stored and returned with its id", func() {
				convey.So(c.Index, convey.ShouldEqual, 3)
				convey.So(c.Result.OK(), convey.ShouldBeTrue)
				convey.So(c.Result.Value.ID, convey.ShouldEqual, "chart-id")
				convey.So(saver.count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the calculation fails", func() {
			calc.setError("bad", model.NewError(model.KindInvalidBirthData, "test", errors.New("hour out of range")))
			reply := make(chan queue.Completion, 1)
			q.add(birthJob(0, "bad", reply))

			c := <-reply

			convey.Convey("Then the failure is delivered and nothing is stored", func() {
				convey.So(c.Result.OK(), convey.ShouldBeFalse)
				convey.So(c.Result.Failure.Kind, convey.ShouldEqual, model.KindInvalidBirthData)
				convey.So(saver.count(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the job context is already cancelled", func() {
			jobCtx, jobCancel := context.WithCancel(context.Background())
			jobCancel()
			reply := make(chan queue.Completion, 1)
			j := birthJob(1, "late", reply)
			j.Ctx = jobCtx
			q.add(j)

			c := <-reply

			convey.Convey("Then it is failed as cancelled without computing", func() {
				convey.So(c.Result.Failure.Kind, convey.ShouldEqual, model.KindCancelled)
				convey.So(calc.callCount(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shut down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker whose store fails", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockCalculator(), &mockSaver{err: errors.New("disk full")})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		reply := make(chan queue.Completion, 1)
		q.add(birthJob(0, "ok", reply))
		c := <-reply

		convey.Convey("Then the job fails as internal", func() {
			convey.So(c.Result.OK(), convey.ShouldBeFalse)
			convey.So(c.Result.Failure.Kind, convey.ShouldEqual, model.KindInternal)
			convey.So(c.Result.Failure.Message, convey.ShouldContainSubstring, "disk full")
		})
	})

	convey.Convey("Given a worker without a store", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockCalculator(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		reply := make(chan queue.Completion, 1)
		q.add(birthJob(0, "ok", reply))
		c := <-reply

		convey.Convey("Then the chart is returned without an id", func() {
			convey.So(c.Result.OK(), convey.ShouldBeTrue)
			convey.So(c.Result.Value.ID, convey.ShouldBeEmpty)
		})
	})
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of four workers", t, func() {
		q := newMockQueue()
		calc := newMockCalculator()
		calc.delay = 20 * time.Millisecond
		saver := &mockSaver{}
		pool := worker.NewPool(4, q, calc, saver)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When eight jobs are submitted", func() {
			reply := make(chan queue.Completion, 8)
			go func() {
				for i := 0; i < 8; i++ {
					q.add(birthJob(i, "ok", reply))
				}
			}()

			seen := make(map[int]bool)
			for i := 0; i < 8; i++ {
				c := <-reply
				seen[c.Index] = true
			}

			convey.Convey("Then every job completes once and work runs in parallel", func() {
				convey.So(len(seen), convey.ShouldEqual, 8)
				convey.So(saver.count(), convey.ShouldEqual, 8)
				convey.So(atomic.LoadInt64(&calc.peak), convey.ShouldBeGreaterThan, 1)
			})

			convey.Convey("And the pool shuts down cleanly", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given a pool created with a zero count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockCalculator(), nil)

		convey.Convey("Then it sizes itself from the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
