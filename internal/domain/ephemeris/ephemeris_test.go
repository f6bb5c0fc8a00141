package ephemeris

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStatic(t *testing.T) {
	Convey("Given a static provider", t, func() {
		src := Positions{model.Sun: {Longitude: 10, Speed: 1}}
		p := NewStatic(src)

		Convey("Then it returns the same positions for any date", func() {
			a, err := p.Positions(context.Background(), 1, nil)
			So(err, ShouldBeNil)
			b, err := p.Positions(context.Background(), 3e6, &model.Location{})
			So(err, ShouldBeNil)
			So(a, ShouldResemble, b)
			So(p.Name(), ShouldEqual, "static")
		})

		Convey("Then callers cannot mutate its state", func() {
			a, _ := p.Positions(context.Background(), 1, nil)
			a[model.Sun] = RawPosition{Longitude: 99}
			src[model.Sun] = RawPosition{Longitude: 98}
			b, _ := p.Positions(context.Background(), 1, nil)
			So(b[model.Sun].Longitude, ShouldEqual, 10)
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := p.Positions(ctx, 1, nil)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestNewError(t *testing.T) {
	Convey("Given a provider failure", t, func() {
		err := NewError("remote", map[string]int{"status": 503}, errors.New("unavailable"))

		Convey("Then it is an ephemeris error carrying the detail", func() {
			So(errors.Is(err, model.ErrEphemeris), ShouldBeTrue)
			So(err.Op, ShouldEqual, "ephemeris.remote")
			So(err.Detail, ShouldResemble, map[string]int{"status": 503})
		})
	})
}

func TestCached(t *testing.T) {
	Convey("Given a cached provider", t, func() {
		var calls int64
		next := Func(func(ctx context.Context, jd float64, _ *model.Location) (Positions, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(5 * time.Millisecond)
			return Positions{model.Sun: {Longitude: jd}}, nil
		})
		c := NewCached(next, WithCacheSize(2))
		ctx := context.Background()

		Convey("When the same lookup repeats", func() {
			_, err := c.Positions(ctx, 1, nil)
			So(err, ShouldBeNil)
			p, err := c.Positions(ctx, 1, nil)
			So(err, ShouldBeNil)

			Convey("Then the source is called once", func() {
				So(atomic.LoadInt64(&calls), ShouldEqual, 1)
				So(p[model.Sun].Longitude, ShouldEqual, 1)
			})
		})

		Convey("When concurrent callers ask for the same key", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.Positions(ctx, 7, nil)
				}()
			}
			wg.Wait()

			Convey("Then they share a single source call", func() {
				So(atomic.LoadInt64(&calls), ShouldBeLessThanOrEqualTo, 2)
			})
		})

		Convey("When more keys than the capacity are used", func() {
			for _, jd := range []float64{1, 2, 3} {
				_, err := c.Positions(ctx, jd, nil)
				So(err, ShouldBeNil)
			}

			Convey("Then the oldest entry is evicted", func() {
				So(c.Len(), ShouldEqual, 2)
				_, _ = c.Positions(ctx, 1, nil)
				So(atomic.LoadInt64(&calls), ShouldEqual, 4)
			})
		})

		Convey("When the source fails", func() {
			failing := NewCached(Func(func(context.Context, float64, *model.Location) (Positions, error) {
				return nil, NewError("func", nil, errors.New("down"))
			}))
			_, err := failing.Positions(ctx, 1, nil)

			Convey("Then the error is returned and nothing is cached", func() {
				So(errors.Is(err, model.ErrEphemeris), ShouldBeTrue)
				So(failing.Len(), ShouldEqual, 0)
			})
		})

		Convey("When one caller cancels while another waits on the same lookup", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			var sourceCalls int64
			blocking := NewCached(Func(func(ctx context.Context, jd float64, _ *model.Location) (Positions, error) {
				atomic.AddInt64(&sourceCalls, 1)
				close(started)
				select {
				case <-release:
					return Positions{model.Sun: {Longitude: jd}}, nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}))

			firstCtx, cancel := context.WithCancel(context.Background())
			firstErr := make(chan error, 1)
			go func() {
				_, err := blocking.Positions(firstCtx, 9, nil)
				firstErr <- err
			}()
			<-started

			type outcome struct {
				p   Positions
				err error
			}
			second := make(chan outcome, 1)
			go func() {
				p, err := blocking.Positions(context.Background(), 9, nil)
				second <- outcome{p, err}
			}()
			time.Sleep(20 * time.Millisecond)

			cancel()
			So(errors.Is(<-firstErr, context.Canceled), ShouldBeTrue)
			close(release)
			got := <-second

			Convey("Then the other caller still gets the positions", func() {
				So(got.err, ShouldBeNil)
				So(got.p[model.Sun].Longitude, ShouldEqual, 9)
				So(atomic.LoadInt64(&sourceCalls), ShouldEqual, 1)
			})
		})

		Convey("When the shared lookup hangs", func() {
			hung := NewCached(Func(func(ctx context.Context, _ float64, _ *model.Location) (Positions, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}), WithFetchTimeout(20*time.Millisecond))
			_, err := hung.Positions(ctx, 1, nil)

			Convey("Then the fetch timeout ends it", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})

		Convey("Then location is part of the key", func() {
			So(cacheKey(1, nil), ShouldNotEqual, cacheKey(1, &model.Location{Latitude: 1}))
		})
	})
}
