package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/astrolabe/internal/app"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	"github.com/okian/astrolabe/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func positions() ephemeris.Positions {
	return ephemeris.Positions{
		model.Sun:       {Longitude: 112.5, Distance: 1.01, Speed: 0.95},
		model.Moon:      {Longitude: 232.5, Distance: 0.0025, Speed: 13.2},
		model.Mercury:   {Longitude: 98.2, Distance: 0.7, Speed: -0.3},
		model.Venus:     {Longitude: 75.0, Distance: 0.5, Speed: 1.1},
		model.Mars:      {Longitude: 10.4, Distance: 1.2, Speed: 0.6},
		model.Jupiter:   {Longitude: 103.1, Distance: 6.1, Speed: 0.22},
		model.Saturn:    {Longitude: 292.7, Distance: 9.3, Speed: -0.05},
		model.Uranus:    {Longitude: 276.9, Distance: 18.6, Speed: -0.04},
		model.Neptune:   {Longitude: 283.3, Distance: 29.2, Speed: -0.02},
		model.Pluto:     {Longitude: 225.8, Distance: 29.8, Speed: 0.001},
		model.NorthNode: {Longitude: 315.0, Speed: -0.053},
	}
}

func request(hour int) types.ChartRequest {
	return types.ChartRequest{
		BirthData: model.BirthData{
			Date:     model.Date{Year: 1990, Month: 7, Day: 15},
			Time:     model.Clock{Hour: hour, Minute: 30},
			Location: model.Location{Latitude: 40.7128, Longitude: -74.006, Timezone: "America/New_York"},
		},
		HouseSystem: "equal",
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(ephemeris.NewStatic(positions()))

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["ephemeris"], ShouldEqual, "static")
			So(stats["storedCharts"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(ephemeris.NewStatic(positions()),
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithStoreCapacity(100),
		)

		Convey("Then the options are reflected in the stats", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 500)
			So(stats["storeCapacity"], ShouldEqual, 100)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(ephemeris.NewStatic(positions()), service.WithWorkerCount(2))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.GetStats()["queueLength"], ShouldEqual, 0)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a service without a provider", t, func() {
		svc := service.New(nil)

		Convey("Then it refuses to start", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrNoProvider), ShouldBeTrue)
		})
	})
}

func TestService_ComputeChart(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := service.New(ephemeris.NewStatic(positions()))

		Convey("When a valid chart is requested", func() {
			res := svc.ComputeChart(ctx, request(14))

			Convey("Then it is computed and stored", func() {
				So(res.OK(), ShouldBeTrue)
				So(res.Value.ID, ShouldNotBeEmpty)
				So(res.Value.Houses, ShouldHaveLength, 12)
				So(res.Accuracy, ShouldEqual, model.AccuracyHigh)

				got, err := svc.Chart(ctx, res.Value.ID)
				So(err, ShouldBeNil)
				So(got.JulianDay, ShouldEqual, res.Value.JulianDay)
			})
		})

		Convey("When the birth data is invalid", func() {
			res := svc.ComputeChart(ctx, request(25))

			Convey("Then nothing is stored", func() {
				So(res.Failure.Kind, ShouldEqual, model.KindInvalidBirthData)
				So(svc.GetStats()["storedCharts"], ShouldEqual, 0)
			})
		})

		Convey("When an unknown chart is requested", func() {
			_, err := svc.Chart(ctx, "missing")
			So(model.KindOf(err), ShouldEqual, model.KindNotFound)
		})
	})
}

func TestService_ComputeBatch(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := service.New(ephemeris.NewStatic(positions()),
			service.WithWorkerCount(2),
			service.WithMaxBatchSize(5),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a mixed batch is submitted", func() {
			results, err := svc.ComputeBatch(ctx, []types.ChartRequest{request(1), request(25), request(3)})

			Convey("Then results keep the request order", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 3)
				So(results[0].OK(), ShouldBeTrue)
				So(results[1].Failure.Kind, ShouldEqual, model.KindInvalidBirthData)
				So(results[2].OK(), ShouldBeTrue)
				So(results[0].Value.ID, ShouldNotEqual, results[2].Value.ID)
			})
		})

		Convey("When the batch is empty or too large", func() {
			_, err := svc.ComputeBatch(ctx, nil)
			So(model.KindOf(err), ShouldEqual, model.KindInvalidInput)

			reqs := make([]types.ChartRequest, 6)
			_, err = svc.ComputeBatch(ctx, reqs)
			So(errors.Is(err, service.ErrBatchTooLarge), ShouldBeTrue)
		})
	})

	Convey("Given a service with a tiny queue and a slow provider", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slow := ephemeris.Func(func(ctx context.Context, _ float64, _ *model.Location) (ephemeris.Positions, error) {
			time.Sleep(50 * time.Millisecond)
			return positions(), nil
		})
		svc := service.New(slow, service.WithWorkerCount(1), service.WithQueueSize(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When more items arrive than the queue holds", func() {
			reqs := []types.ChartRequest{request(1), request(2), request(3), request(4), request(5), request(6)}
			results, err := svc.ComputeBatch(ctx, reqs)

			Convey("Then overflow items fail with backpressure", func() {
				So(err, ShouldBeNil)
				backpressure := 0
				for _, r := range results {
					if !r.OK() {
						So(r.Failure.Kind, ShouldEqual, model.KindBackpressure)
						backpressure++
					}
				}
				So(backpressure, ShouldBeGreaterThan, 0)
				So(backpressure, ShouldBeLessThan, len(reqs))
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New(ephemeris.NewStatic(positions()))
		_, err := svc.ComputeBatch(context.Background(), []types.ChartRequest{request(1)})
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}

func TestService_ComputeSynastry(t *testing.T) {
	Convey("Given a service with two stored charts", t, func() {
		ctx := context.Background()
		svc := service.New(ephemeris.NewStatic(positions()))
		a := svc.ComputeChart(ctx, request(6))
		b := svc.ComputeChart(ctx, request(18))
		So(a.OK() && b.OK(), ShouldBeTrue)

		Convey("When compared by id", func() {
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{ChartA: a.Value.ID, ChartB: b.Value.ID})

			Convey("Then a report is produced", func() {
				So(res.OK(), ShouldBeTrue)
				So(res.Value.OverallScore, ShouldBeBetweenOrEqual, 0, 100)
				So(res.Value.KeyAspects, ShouldNotBeEmpty)
			})
		})

		Convey("When one id is unknown", func() {
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{ChartA: a.Value.ID, ChartB: "nope"})
			So(res.Failure.Kind, ShouldEqual, model.KindNotFound)
		})

		Convey("When one id is missing", func() {
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{ChartA: a.Value.ID})
			So(res.Failure.Kind, ShouldEqual, model.KindInvalidInput)
		})

		Convey("When ids and birth data are mixed", func() {
			ra := request(6)
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{ChartA: a.Value.ID, ChartB: b.Value.ID, PersonA: &ra})
			So(res.Failure.Kind, ShouldEqual, model.KindInvalidInput)
		})
	})

	Convey("Given birth data for two people", t, func() {
		ctx := context.Background()
		svc := service.New(ephemeris.NewStatic(positions()))
		ra, rb := request(6), request(18)

		Convey("When compared directly", func() {
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{PersonA: &ra, PersonB: &rb})

			Convey("Then both charts are computed without being stored", func() {
				So(res.OK(), ShouldBeTrue)
				So(svc.GetStats()["storedCharts"], ShouldEqual, 0)
			})
		})

		Convey("When one person's data is invalid", func() {
			bad := request(25)
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{PersonA: &ra, PersonB: &bad})

			Convey("Then the chart failure is reported", func() {
				So(res.Failure.Kind, ShouldEqual, model.KindInvalidBirthData)
				So(res.Failure.Message, ShouldContainSubstring, "person_b")
			})
		})
	})
}

func TestService_Sky(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(ephemeris.NewStatic(positions()))

		Convey("When the sky is requested", func() {
			res := svc.Sky(context.Background(), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

			Convey("Then the lunar phase is included", func() {
				So(res.OK(), ShouldBeTrue)
				So(res.Value.Lunar.Elongation, ShouldAlmostEqual, 120, 1e-9)
				So(res.Value.Positions, ShouldNotBeEmpty)
			})
		})
	})
}
