// Package chart assembles natal charts from birth data.
//
// An Assembler validates the input, converts it to a Julian Day, asks the
// ephemeris provider for raw positions, partitions the houses and detects
// aspects. The ephemeris call is the only blocking step; it always runs
// under a timeout and the caller's context.
package chart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/astrolabe/internal/domain/aspects"
	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/houses"
	"github.com/okian/astrolabe/internal/domain/julian"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
	"github.com/okian/astrolabe/pkg/metrics"
)

// Default assembler configuration.
const (
	defaultEphemerisTimeout = 5 * time.Second
	defaultHouseSystem      = model.Placidus
)

// Options are the per-request calculation settings.
type Options struct {
	HouseSystem      model.HouseSystem
	ZodiacType       model.ZodiacType
	AspectOrbs       aspects.Orbs
	IncludeAsteroids bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithConverter sets the time converter and thereby the supported date range.
func WithConverter(c julian.Converter) Option {
	return func(a *Assembler) { a.converter = c }
}

// WithHouseCalculator sets the house strategy registry.
func WithHouseCalculator(c *houses.Calculator) Option {
	return func(a *Assembler) {
		if c != nil {
			a.houses = c
		}
	}
}

// WithDetector sets the base aspect detector. Per-request orb overrides are
// merged over its orbs and keep its matching rule.
func WithDetector(d *aspects.Detector) Option {
	return func(a *Assembler) {
		if d != nil {
			a.detector = d
		}
	}
}

// WithEphemerisTimeout bounds each ephemeris call.
func WithEphemerisTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRetrogradeThreshold sets the speed below which a body is retrograde.
func WithRetrogradeThreshold(v float64) Option {
	return func(a *Assembler) { a.retrogradeThreshold = v }
}

// WithDefaultHouseSystem sets the house system used when a request names none.
func WithDefaultHouseSystem(hs model.HouseSystem) Option {
	return func(a *Assembler) {
		if _, err := model.ParseHouseSystem(string(hs)); err == nil {
			a.defaultHouseSystem = hs
		}
	}
}

// WithClock overrides the time source used for timestamps and elapsed time.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// Assembler computes charts. It holds only immutable collaborators and is
// safe for concurrent use.
type Assembler struct {
	provider            ephemeris.Provider
	converter           julian.Converter
	houses              *houses.Calculator
	detector            *aspects.Detector
	timeout             time.Duration
	retrogradeThreshold float64
	defaultHouseSystem  model.HouseSystem
	now                 func() time.Time
}

// NewAssembler creates an Assembler backed by provider.
func NewAssembler(provider ephemeris.Provider, opts ...Option) *Assembler {
	a := &Assembler{
		provider:           provider,
		converter:          julian.NewConverter(),
		houses:             houses.NewCalculator(),
		detector:           aspects.NewDetector(),
		timeout:            defaultEphemerisTimeout,
		defaultHouseSystem: defaultHouseSystem,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compute builds the chart for bd. It never panics and never returns a
// partial chart: any failure yields a failed Result.
func (a *Assembler) Compute(ctx context.Context, bd model.BirthData, opts Options) (res model.Result[*model.Chart]) {
	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			res = model.Fail[*model.Chart](model.NewError(model.KindInternal, "chart.compute", fmt.Errorf("panic: %v", r)), a.now().Sub(start))
		}
		if res.OK() {
			metrics.RecordChartComputed(float64(res.Elapsed.Milliseconds()))
			metrics.RecordAspectsDetected(len(res.Value.Aspects))
		} else {
			metrics.RecordChartFailed(string(res.Failure.Kind))
		}
	}()

	c, accuracy, err := a.compute(ctx, bd, opts)
	elapsed := a.now().Sub(start)
	if err != nil {
		return model.Fail[*model.Chart](err, elapsed)
	}
	return model.Succeed(c, elapsed, accuracy)
}

func (a *Assembler) compute(ctx context.Context, bd model.BirthData, opts Options) (*model.Chart, model.Accuracy, error) {
	const op = "chart.compute"

	if err := ValidateBirthData(bd); err != nil {
		return nil, "", err
	}
	hs, zt, detector, err := a.resolve(opts)
	if err != nil {
		return nil, "", err
	}

	ut, err := bd.UT()
	if err != nil {
		return nil, "", model.NewError(model.KindInvalidBirthData, op, err)
	}
	jd, err := a.converter.ToJulianDay(julian.FromTime(ut))
	if err != nil {
		return nil, "", err
	}

	loc := bd.Location
	raw, err := a.fetch(ctx, jd, &loc)
	if err != nil {
		return nil, "", err
	}

	bodies := model.CoreBodies
	if opts.IncludeAsteroids {
		bodies = append(append([]model.Body{}, model.CoreBodies...), model.Asteroids...)
	}
	positions, err := a.place(raw, bodies, jd, zt)
	if err != nil {
		return nil, "", err
	}

	cusps, err := a.houses.Calculate(hs, jd, loc)
	if err != nil {
		return nil, "", err
	}
	if zt == model.Sidereal {
		for i := range cusps.Longitudes {
			cusps.Longitudes[i] = zodiac.ToSidereal(cusps.Longitudes[i], jd)
		}
	}
	for i := range positions {
		positions[i].House = houses.Assign(cusps.Longitudes, positions[i].Longitude)
	}

	asc := a.point(model.Ascendant, cusps.Longitudes[0], 1)
	mc := a.point(model.Midheaven, cusps.Longitudes[9], 10)

	accuracy := model.AccuracyHigh
	if cusps.Approximate {
		accuracy = model.AccuracyMedium
	}

	return &model.Chart{
		BirthData:    bd,
		JulianDay:    jd,
		Positions:    positions,
		Houses:       cusps.HouseCusps(),
		Aspects:      detector.Detect(aspectCandidates(positions)),
		Ascendant:    asc,
		Midheaven:    mc,
		HouseSystem:  hs,
		ZodiacType:   zt,
		Elements:     zodiac.ElementCounts(positions),
		Modalities:   zodiac.ModalityCounts(positions),
		CalculatedAt: a.now().UTC(),
	}, accuracy, nil
}

// resolve validates the request options against the assembler defaults.
func (a *Assembler) resolve(opts Options) (model.HouseSystem, model.ZodiacType, *aspects.Detector, error) {
	hs := opts.HouseSystem
	if hs == "" {
		hs = a.defaultHouseSystem
	}
	if _, err := model.ParseHouseSystem(string(hs)); err != nil {
		return "", "", nil, model.NewError(model.KindInvalidInput, "chart.options", err)
	}
	zt, err := model.ParseZodiacType(string(opts.ZodiacType))
	if err != nil {
		return "", "", nil, model.NewError(model.KindInvalidInput, "chart.options", err)
	}
	detector := a.detector
	if len(opts.AspectOrbs) > 0 {
		orbs, err := aspects.Merge(a.detector.Orbs(), opts.AspectOrbs)
		if err != nil {
			return "", "", nil, err
		}
		detector = aspects.NewDetector(aspects.WithOrbs(orbs), aspects.WithMatcher(a.detector.Matcher()))
	}
	return hs, zt, detector, nil
}

// fetch calls the provider under the assembler timeout. A cancelled caller
// context is reported as cancelled; an expired timeout is a provider failure.
func (a *Assembler) fetch(ctx context.Context, jd float64, loc *model.Location) (ephemeris.Positions, error) {
	const op = "chart.ephemeris"
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type reply struct {
		positions ephemeris.Positions
		err       error
	}
	ch := make(chan reply, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		p, err := a.provider.Positions(callCtx, jd, loc)
		ch <- reply{positions: p, err: err}
	}()

	var r reply
	select {
	case <-callCtx.Done():
		r.err = callCtx.Err()
	case r = <-ch:
	}
	metrics.RecordEphemerisLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case r.err == nil:
		return r.positions, nil
	case ctx.Err() != nil:
		return nil, model.NewError(model.KindCancelled, op, ctx.Err())
	case errors.Is(r.err, model.ErrEphemeris):
		metrics.RecordEphemerisError(a.provider.Name())
		return nil, r.err
	case errors.Is(r.err, context.DeadlineExceeded):
		metrics.RecordEphemerisError(a.provider.Name())
		return nil, ephemeris.NewError(a.provider.Name(), map[string]string{"timeout": a.timeout.String()}, fmt.Errorf("no response within %s", a.timeout))
	default:
		metrics.RecordEphemerisError(a.provider.Name())
		return nil, ephemeris.NewError(a.provider.Name(), nil, r.err)
	}
}

// place turns raw provider output into normalized positions in body order.
func (a *Assembler) place(raw ephemeris.Positions, bodies []model.Body, jd float64, zt model.ZodiacType) ([]model.CelestialPosition, error) {
	out := make([]model.CelestialPosition, 0, len(bodies))
	for _, b := range bodies {
		r, ok := raw[b]
		if !ok {
			switch {
			case b == model.SouthNode:
				north, hasNorth := raw[model.NorthNode]
				if !hasNorth {
					return nil, a.missing(b)
				}
				r = ephemeris.RawPosition{Longitude: north.Longitude + 180, Latitude: -north.Latitude, Distance: north.Distance, Speed: north.Speed}
			case isAsteroid(b):
				continue
			default:
				return nil, a.missing(b)
			}
		}
		lon := r.Longitude
		if zt == model.Sidereal {
			lon = zodiac.ToSidereal(lon, jd)
		}
		out = append(out, zodiac.Position(b, lon, r.Latitude, r.Distance, r.Speed, a.retrogradeThreshold))
	}
	return out, nil
}

func (a *Assembler) missing(b model.Body) error {
	return ephemeris.NewError(a.provider.Name(), map[string]string{"missing_body": string(b)}, fmt.Errorf("provider returned no position for %s", b))
}

func (a *Assembler) point(b model.Body, lon float64, house int) model.CelestialPosition {
	p := zodiac.Position(b, lon, 0, 0, 0, 0)
	p.Retrograde = false
	p.House = house
	return p
}

// aspectCandidates drops the south node, which mirrors the north node.
func aspectCandidates(positions []model.CelestialPosition) []model.CelestialPosition {
	out := make([]model.CelestialPosition, 0, len(positions))
	for _, p := range positions {
		if p.Body != model.SouthNode {
			out = append(out, p)
		}
	}
	return out
}

func isAsteroid(b model.Body) bool {
	for _, a := range model.Asteroids {
		if a == b {
			return true
		}
	}
	return false
}
