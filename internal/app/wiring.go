package service

import (
	"context"
	"fmt"

	"github.com/okian/astrolabe/internal/adapters/ephemeris/remote"
	"github.com/okian/astrolabe/internal/adapters/ephemeris/table"
	"github.com/okian/astrolabe/internal/config"
	"github.com/okian/astrolabe/internal/domain/aspects"
	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/julian"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/synastry"
	"github.com/okian/astrolabe/pkg/logger"
)

// NewProvider builds the configured ephemeris source, wrapped in a cache
// unless the cache size is zero. A watched table is reloaded until ctx ends.
func NewProvider(ctx context.Context, cfg *config.Config) (ephemeris.Provider, error) {
	var p ephemeris.Provider
	switch cfg.EphemerisSource {
	case config.SourceRemote:
		rp, err := remote.New(cfg.EphemerisURL,
			remote.WithRetries(cfg.EphemerisRetries),
		)
		if err != nil {
			return nil, fmt.Errorf("remote ephemeris: %w", err)
		}
		p = rp
	default:
		tp, err := table.Load(cfg.EphemerisTable)
		if err != nil {
			return nil, fmt.Errorf("ephemeris table: %w", err)
		}
		if cfg.EphemerisWatch {
			go func() {
				if err := tp.Watch(ctx); err != nil {
					logger.Get().Error(ctx, "ephemeris table watch stopped", logger.Error(err))
				}
			}()
		}
		p = tp
	}

	if cfg.EphemerisCacheSize == 0 {
		return p, nil
	}
	return ephemeris.NewCached(p,
		ephemeris.WithCacheSize(cfg.EphemerisCacheSize),
		ephemeris.WithFetchTimeout(cfg.EphemerisTimeout()),
	), nil
}

// ChartOptions maps configuration onto the chart assembler.
func ChartOptions(cfg *config.Config) []chart.Option {
	return []chart.Option{
		chart.WithConverter(julian.NewConverter(julian.WithMinJulianDay(cfg.MinJulianDay))),
		chart.WithDetector(detector(cfg)),
		chart.WithEphemerisTimeout(cfg.EphemerisTimeout()),
		chart.WithRetrogradeThreshold(cfg.RetrogradeThreshold),
		chart.WithDefaultHouseSystem(model.HouseSystem(cfg.DefaultHouseSystem)),
	}
}

// FromConfig returns the service options described by cfg.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithMaxBatchSize(cfg.MaxBatchSize),
		WithStoreCapacity(cfg.StoreCapacity),
		WithChartOptions(ChartOptions(cfg)...),
		WithSynastryOptions(
			synastry.WithDetector(detector(cfg)),
			synastry.WithKeyAspects(cfg.KeyAspects),
			synastry.WithComposite(cfg.Composite),
		),
	}
}

func detector(cfg *config.Config) *aspects.Detector {
	if cfg.AspectMatch == config.MatchNearest {
		return aspects.NewDetector(aspects.WithNearestAngle())
	}
	return aspects.NewDetector()
}
