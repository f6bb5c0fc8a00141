package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/astrolabe/internal/adapters/ephemeris/remote"
	service "github.com/okian/astrolabe/internal/app"
	"github.com/okian/astrolabe/internal/config"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

const tableYAML = `
rows:
  - jd: 2460310.5
    bodies:
      sun: {lon: 279.7123, dist: 0.98333, speed: 1.0192}
      moon: {lon: 156.4364, lat: 3.6172, dist: 0.002713, speed: 11.747}
      mercury: {lon: 261.9499, lat: 3.0676, dist: 0.777652, speed: -0.0987}
      venus: {lon: 242.2881, dist: 1.182053, speed: 1.2164}
      mars: {lon: 266.9783, dist: 2.423816, speed: 0.7418}
      jupiter: {lon: 35.1759, dist: 4.480986, speed: 0.0052}
      saturn: {lon: 332.9785, dist: 10.284393, speed: 0.0891}
      uranus: {lon: 49.0647, dist: 18.967483, speed: -0.0215}
      neptune: {lon: 354.7393, dist: 30.135612, speed: 0.0149}
      pluto: {lon: 299.0164, dist: 35.847606, speed: 0.0311}
      north_node: {lon: 20.8783, speed: -0.053}
  - jd: 2460311.5
    bodies:
      sun: {lon: 280.7315, dist: 0.98332, speed: 1.0192}
      moon: {lon: 168.1834, lat: 4.2, dist: 0.00272, speed: 11.8}
      mercury: {lon: 261.8512, lat: 3.0, dist: 0.77, speed: -0.05}
      venus: {lon: 243.5045, dist: 1.18, speed: 1.2164}
      mars: {lon: 267.7201, dist: 2.42, speed: 0.7418}
      jupiter: {lon: 35.1811, dist: 4.49, speed: 0.0052}
      saturn: {lon: 333.0676, dist: 10.29, speed: 0.0891}
      uranus: {lon: 49.0432, dist: 18.97, speed: -0.0215}
      neptune: {lon: 354.7542, dist: 30.14, speed: 0.0149}
      pluto: {lon: 299.0475, dist: 35.85, speed: 0.0311}
      north_node: {lon: 20.8253, speed: -0.053}
`

func writeTable(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "ephemeris.yaml")
	if err := os.WriteFile(path, []byte(tableYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewProvider(t *testing.T) {
	Convey("Given a config pointing at a table file", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := config.New(ctx)
		cfg.EphemerisTable = writeTable(t)

		Convey("When the provider is built with a cache", func() {
			p, err := service.NewProvider(ctx, cfg)

			Convey("Then it is a cached table provider", func() {
				So(err, ShouldBeNil)
				So(p.Name(), ShouldEqual, "table")
				_, cached := p.(*ephemeris.Cached)
				So(cached, ShouldBeTrue)
			})
		})

		Convey("When the cache is disabled and the file is watched", func() {
			cfg.EphemerisCacheSize = 0
			cfg.EphemerisWatch = true
			p, err := service.NewProvider(ctx, cfg)

			Convey("Then the bare table is returned", func() {
				So(err, ShouldBeNil)
				_, cached := p.(*ephemeris.Cached)
				So(cached, ShouldBeFalse)
			})
		})

		Convey("When the table file is missing", func() {
			cfg.EphemerisTable = filepath.Join(t.TempDir(), "missing.yaml")
			_, err := service.NewProvider(ctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a remote config with a bad url", t, func() {
		cfg := config.New(context.Background())
		cfg.EphemerisSource = config.SourceRemote
		cfg.EphemerisURL = "ftp://nowhere"

		_, err := service.NewProvider(context.Background(), cfg)
		So(errors.Is(err, remote.ErrInvalidBaseURL), ShouldBeTrue)
	})
}

func TestFromConfig(t *testing.T) {
	Convey("Given a configured service", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.EphemerisTable = writeTable(t)
		cfg.DefaultHouseSystem = "whole_sign"
		cfg.KeyAspects = 3
		cfg.Composite = false

		p, err := service.NewProvider(ctx, cfg)
		So(err, ShouldBeNil)
		svc := service.New(p, service.FromConfig(cfg)...)

		req := types.ChartRequest{BirthData: model.BirthData{
			Date:     model.Date{Year: 2024, Month: 1, Day: 1},
			Time:     model.Clock{Hour: 12},
			Location: model.Location{Latitude: 51.5, Longitude: -0.12, Timezone: "Europe/London"},
		}}

		Convey("Then the default house system applies", func() {
			res := svc.ComputeChart(ctx, req)
			So(res.OK(), ShouldBeTrue)
			So(res.Value.HouseSystem, ShouldEqual, model.WholeSign)
			So(res.Value.Houses[0].Longitude, ShouldEqual, float64(int(res.Value.Houses[0].Longitude)/30*30))
		})

		Convey("Then synastry honours the key aspect and composite settings", func() {
			other := req
			other.BirthData.Time.Hour = 18
			res := svc.ComputeSynastry(ctx, types.SynastryRequest{PersonA: &req, PersonB: &other})
			So(res.OK(), ShouldBeTrue)
			So(len(res.Value.KeyAspects), ShouldBeLessThanOrEqualTo, 3)
			So(res.Value.Composite, ShouldBeEmpty)
		})

		Convey("Then dates before the configured minimum are rejected", func() {
			cfg.MinJulianDay = 2460400.5
			strict := service.New(p, service.FromConfig(cfg)...)
			res := strict.ComputeChart(ctx, req)
			So(res.Failure.Kind, ShouldEqual, model.KindInvalidInput)
		})

		Convey("Then a tight ephemeris timeout still succeeds against a local table", func() {
			cfg.EphemerisTimeoutMS = int((50 * time.Millisecond).Milliseconds())
			res := service.New(p, service.FromConfig(cfg)...).ComputeChart(ctx, req)
			So(res.OK(), ShouldBeTrue)
		})
	})
}
