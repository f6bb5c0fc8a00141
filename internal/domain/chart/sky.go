package chart

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/astrolabe/internal/domain/julian"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
	"github.com/okian/astrolabe/pkg/metrics"
)

// Sky returns the geocentric positions, their aspects and the lunar phase at
// instant. No location is involved, so there are no houses.
func (a *Assembler) Sky(ctx context.Context, instant time.Time) (res model.Result[*model.SkySnapshot]) {
	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			res = model.Fail[*model.SkySnapshot](model.NewError(model.KindInternal, "chart.sky", fmt.Errorf("panic: %v", r)), a.now().Sub(start))
		}
	}()

	at := instant.UTC()
	jd, err := a.converter.ToJulianDay(julian.FromTime(at))
	if err != nil {
		return model.Fail[*model.SkySnapshot](err, a.now().Sub(start))
	}
	raw, err := a.fetch(ctx, jd, nil)
	if err != nil {
		return model.Fail[*model.SkySnapshot](err, a.now().Sub(start))
	}
	positions, err := a.place(raw, model.CoreBodies, jd, model.Tropical)
	if err != nil {
		return model.Fail[*model.SkySnapshot](err, a.now().Sub(start))
	}

	snap := &model.SkySnapshot{
		At:        at,
		JulianDay: jd,
		Positions: positions,
		Aspects:   a.detector.Detect(aspectCandidates(positions)),
	}
	sun, _ := find(positions, model.Sun)
	moon, _ := find(positions, model.Moon)
	snap.Lunar = Phase(sun.Longitude, moon.Longitude)
	metrics.RecordSkySnapshot()
	return model.Succeed(snap, a.now().Sub(start), model.AccuracyHigh)
}

// Phase derives the lunar phase from the Sun and Moon longitudes.
func Phase(sunLon, moonLon float64) model.LunarPhase {
	elong := zodiac.Normalize(moonLon - sunLon)
	idx := int(zodiac.Normalize(elong+22.5)/45) % len(model.Phases)
	return model.LunarPhase{
		Name:         model.Phases[idx],
		Elongation:   elong,
		Illumination: (1 - math.Cos(elong*math.Pi/180)) / 2,
		MoonSign:     zodiac.Place(moonLon).Sign,
	}
}

func find(positions []model.CelestialPosition, b model.Body) (model.CelestialPosition, bool) {
	for _, p := range positions {
		if p.Body == b {
			return p, true
		}
	}
	return model.CelestialPosition{}, false
}
