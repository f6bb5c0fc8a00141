// Package synastry scores the compatibility of two natal charts.
package synastry

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/astrolabe/internal/domain/aspects"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
	"github.com/okian/astrolabe/pkg/metrics"
)

// Default scoring configuration constants.
const (
	defaultKeyAspects = 10
	neutralScore      = 50.0
	strengthBonus     = 15.0
	maxScoreValue     = 100

	luminaryFactor = 1.0
	outerFactor    = 0.6
	defaultFactor  = 0.8
)

var tierBase = map[model.Tier]float64{
	model.Excellent:   85,
	model.Good:        70,
	model.Challenging: 45,
	model.Difficult:   25,
}

// Harmony thresholds: a spread below the first is harmonious, below the
// second complementary.
var (
	elementThresholds  = [2]float64{20, 40}
	modalityThresholds = [2]float64{25, 45}
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithDetector sets the detector providing the base orbs and matching rule.
func WithDetector(d *aspects.Detector) Option {
	return func(e *Engine) {
		if d != nil {
			e.detector = d
		}
	}
}

// WithKeyAspects sets how many of the strongest aspects are reported as key aspects.
func WithKeyAspects(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.keyAspects = n
		}
	}
}

// WithComposite toggles the composite midpoint chart in reports.
func WithComposite(enabled bool) Option {
	return func(e *Engine) { e.composite = enabled }
}

// Engine computes compatibility reports. It is immutable after construction.
type Engine struct {
	detector   *aspects.Detector
	keyAspects int
	composite  bool
	now        func() time.Time
}

// NewEngine creates an Engine with the default orbs.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		detector:   aspects.NewDetector(),
		keyAspects: defaultKeyAspects,
		composite:  true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute analyses the pair of charts. Neither chart is modified.
func (e *Engine) Compute(ctx context.Context, a, b *model.Chart) (res model.Result[*model.CompatibilityReport]) {
	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			res = model.Fail[*model.CompatibilityReport](model.NewError(model.KindInternal, "synastry.compute", fmt.Errorf("panic: %v", r)), e.now().Sub(start))
		}
	}()

	if a == nil || b == nil {
		return model.Fail[*model.CompatibilityReport](model.NewError(model.KindInvalidInput, "synastry.compute", fmt.Errorf("two charts are required")), e.now().Sub(start))
	}
	if err := ctx.Err(); err != nil {
		return model.Fail[*model.CompatibilityReport](model.NewError(model.KindCancelled, "synastry.compute", err), e.now().Sub(start))
	}

	report := e.Analyze(a, b)
	metrics.RecordSynastryComputed(float64(report.OverallScore))
	return model.Succeed(report, e.now().Sub(start), model.AccuracyHigh)
}

// Analyze is the pure scoring step behind Compute.
func (e *Engine) Analyze(a, b *model.Chart) *model.CompatibilityReport {
	bodiesA, bodiesB := candidates(a.Positions), candidates(b.Positions)

	found := make([]model.SynastryAspect, 0)
	for _, p1 := range bodiesA {
		for _, p2 := range bodiesB {
			asp, ok := e.detector.Ordered(p1, p2, OrbFactor(p1.Body, p2.Body))
			if !ok {
				continue
			}
			found = append(found, model.SynastryAspect{
				Aspect:   asp,
				Person1:  p1,
				Person2:  p2,
				Category: CategoryOf(p1.Body, p2.Body),
				Tier:     TierOf(asp.Type),
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].Strength > found[j].Strength })

	report := &model.CompatibilityReport{
		CategoryScores:  make(map[model.Category]int, len(model.Categories)),
		ElementBalance:  elementBalance(tallied(a.Positions), tallied(b.Positions)),
		ModalityBalance: modalityBalance(tallied(a.Positions), tallied(b.Positions)),
		Aspects:         found,
		KeyAspects:      found[:min(len(found), e.keyAspects)],
	}

	sums := make(map[model.Category]float64)
	counts := make(map[model.Category]int)
	for _, sa := range found {
		sums[sa.Category] += tierBase[sa.Tier] + sa.Strength*strengthBonus
		counts[sa.Category]++
		switch sa.Tier {
		case model.Excellent:
			report.Breakdown.Excellent++
		case model.Good:
			report.Breakdown.Good++
		case model.Challenging:
			report.Breakdown.Challenging++
		case model.Difficult:
			report.Breakdown.Difficult++
		}
	}

	total := 0.0
	for _, c := range model.Categories {
		score := neutralScore
		if counts[c] > 0 {
			score = sums[c] / float64(counts[c])
		}
		report.CategoryScores[c] = clampScore(score)
		total += score
	}
	report.OverallScore = clampScore(total / float64(len(model.Categories)))

	if e.composite {
		report.Composite = Composite(a, b)
	}
	return report
}

// OrbFactor scales the base orbs for a cross-chart pair. The outer planet
// rule is applied after the luminary rule, so Sun-Pluto uses the outer factor.
func OrbFactor(b1, b2 model.Body) float64 {
	f := defaultFactor
	if b1.IsLuminary() || b2.IsLuminary() {
		f = luminaryFactor
	}
	if b1.IsOuter() || b2.IsOuter() {
		f = outerFactor
	}
	return f
}

// CategoryOf attributes a pair of bodies to a life area, checking romantic,
// communication, emotional and spiritual in that order.
func CategoryOf(b1, b2 model.Body) model.Category {
	involves := func(bodies ...model.Body) bool {
		for _, b := range bodies {
			if b1 == b || b2 == b {
				return true
			}
		}
		return false
	}
	switch {
	case involves(model.Sun, model.Mars, model.Venus):
		return model.Romantic
	case involves(model.Mercury):
		return model.Communication
	case involves(model.Moon):
		return model.Emotional
	case involves(model.Jupiter, model.Neptune, model.Pluto):
		return model.Spiritual
	default:
		return model.Practical
	}
}

// TierOf grades an aspect type.
func TierOf(t model.AspectType) model.Tier {
	switch t {
	case model.Trine:
		return model.Excellent
	case model.Opposition:
		return model.Difficult
	case model.Square:
		return model.Challenging
	default:
		return model.Good
	}
}

// Composite returns the midpoint positions of the bodies present in both
// charts, followed by the composite Ascendant and Midheaven.
func Composite(a, b *model.Chart) []model.CelestialPosition {
	out := make([]model.CelestialPosition, 0, len(a.Positions)+2)
	for _, p1 := range a.Positions {
		p2, ok := b.Position(p1.Body)
		if !ok {
			continue
		}
		out = append(out, zodiac.Position(p1.Body,
			zodiac.Midpoint(p1.Longitude, p2.Longitude),
			(p1.Latitude+p2.Latitude)/2,
			(p1.Distance+p2.Distance)/2,
			(p1.Speed+p2.Speed)/2,
			0,
		))
	}
	asc := zodiac.Position(model.Ascendant, zodiac.Midpoint(a.Ascendant.Longitude, b.Ascendant.Longitude), 0, 0, 0, 0)
	asc.House = 1
	mc := zodiac.Position(model.Midheaven, zodiac.Midpoint(a.Midheaven.Longitude, b.Midheaven.Longitude), 0, 0, 0, 0)
	mc.House = 10
	return append(out, asc, mc)
}

func elementBalance(a, b []model.CelestialPosition) model.ElementBalance {
	counts := zodiac.ElementCounts(append(append([]model.CelestialPosition{}, a...), b...))
	pct := make(map[model.Element]float64, len(model.Elements))
	values := make([]float64, 0, len(model.Elements))
	total := 0
	for _, n := range counts {
		total += n
	}
	for _, el := range model.Elements {
		pct[el] = percent(counts[el], total)
		values = append(values, pct[el])
	}
	return model.ElementBalance{Percentages: pct, Harmony: classify(values, elementThresholds)}
}

func modalityBalance(a, b []model.CelestialPosition) model.ModalityBalance {
	counts := zodiac.ModalityCounts(append(append([]model.CelestialPosition{}, a...), b...))
	pct := make(map[model.Modality]float64, len(model.Modalities))
	values := make([]float64, 0, len(model.Modalities))
	total := 0
	for _, n := range counts {
		total += n
	}
	for _, m := range model.Modalities {
		pct[m] = percent(counts[m], total)
		values = append(values, pct[m])
	}
	return model.ModalityBalance{Percentages: pct, Harmony: classify(values, modalityThresholds)}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func classify(values []float64, thresholds [2]float64) model.Harmony {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	switch spread := hi - lo; {
	case spread < thresholds[0]:
		return model.Harmonious
	case spread < thresholds[1]:
		return model.Complementary
	default:
		return model.Unbalanced
	}
}

func clampScore(v float64) int {
	return int(math.Max(0, math.Min(maxScoreValue, math.Round(v))))
}

// tallied are the positions counted in the element and modality balance:
// every body, including the south node, but not the chart angles.
func tallied(positions []model.CelestialPosition) []model.CelestialPosition {
	out := make([]model.CelestialPosition, 0, len(positions))
	for _, p := range positions {
		if !p.Body.IsPoint() {
			out = append(out, p)
		}
	}
	return out
}

// candidates are the bodies compared across charts; the south node is
// skipped because it mirrors the north node.
func candidates(positions []model.CelestialPosition) []model.CelestialPosition {
	out := make([]model.CelestialPosition, 0, len(positions))
	for _, p := range positions {
		if p.Body != model.SouthNode && !p.Body.IsPoint() {
			out = append(out, p)
		}
	}
	return out
}
