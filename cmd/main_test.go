package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/astrolabe/internal/adapters/http/api"
	"github.com/okian/astrolabe/internal/adapters/http/swagger"
	app "github.com/okian/astrolabe/internal/app"
	"github.com/okian/astrolabe/internal/config"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/logger"
	"github.com/okian/astrolabe/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func provider() ephemeris.Provider {
	return ephemeris.NewStatic(ephemeris.Positions{
		model.Sun:  {Longitude: 10},
		model.Moon: {Longitude: 130},
	})
}

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		_ = os.Setenv(k, v)
	}
	t.Cleanup(func() {
		for k := range kv {
			_ = os.Unsetenv(k)
		}
	})
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			setenv(t, map[string]string{
				"ASTRO_ADDR":         ":8080",
				"ASTRO_QUEUE_SIZE":   "1000",
				"ASTRO_WORKER_COUNT": "4",
			})

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New(provider())
				convey.So(svc, convey.ShouldNotBeNil)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(provider(),
					app.WithWorkerCount(8),
					app.WithQueueSize(2000),
					app.WithStoreCapacity(1000),
				)
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.GetStats()["workerCount"], convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then metrics manager should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing service metrics updater", func() {
			svc := app.New(provider())

			convey.Convey("Then it should return once the context ends", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startServiceMetricsUpdater(ctx, svc)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When metrics are updated directly", func() {
			svc := app.New(provider(), app.WithWorkerCount(1))
			convey.So(svc.Start(context.Background()), convey.ShouldBeNil)
			defer svc.Stop()

			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given main application integration", t, func() {
		setenv(t, map[string]string{
			"ASTRO_ADDR":            ":8080",
			"ASTRO_WORKER_COUNT":    "2",
			"ASTRO_EPHEMERIS_TABLE": "../data/ephemeris.yaml",
		})

		convey.Convey("When the application is wired as main does it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)

			p, err := app.NewProvider(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)

			svc := app.New(p, app.FromConfig(cfg)...)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			mux := http.NewServeMux()
			swagger.Register(ctx, mux)
			api.NewServer(svc, svc).Register(ctx, mux)

			convey.Convey("Then the health, docs and sky routes answer", func() {
				for _, path := range []string{"/healthz", "/api-docs", "/openapi.yaml", "/v1/sky?at=2024-02-01T00:00:00Z"} {
					rec := httptest.NewRecorder()
					mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
					convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				}
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When testing invalid configuration", func() {
			setenv(t, map[string]string{"ASTRO_ADDR": ""})

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the ephemeris table is missing", func() {
			setenv(t, map[string]string{"ASTRO_EPHEMERIS_TABLE": "does-not-exist.yaml"})

			convey.Convey("Then the provider cannot be built", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				_, err = app.NewProvider(context.Background(), cfg)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the service is started without a provider", func() {
			svc := app.New(nil, app.WithWorkerCount(0), app.WithQueueSize(0))
			convey.So(svc, convey.ShouldNotBeNil)
			convey.So(errors.Is(svc.Start(context.Background()), app.ErrNoProvider), convey.ShouldBeTrue)
		})
	})
}
