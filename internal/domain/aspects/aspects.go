// Package aspects detects angular relationships between ecliptic positions.
package aspects

import (
	"fmt"
	"math"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
)

// Orbs maps aspect types to their maximum allowed deviation in degrees.
type Orbs map[model.AspectType]float64

// DefaultOrbs returns a fresh copy of the default orb table.
func DefaultOrbs() Orbs {
	return Orbs{
		model.Conjunction:    8,
		model.Opposition:     8,
		model.Trine:          8,
		model.Square:         8,
		model.Sextile:        6,
		model.Quincunx:       3,
		model.Semisextile:    2,
		model.Semisquare:     2,
		model.Sesquiquadrate: 2,
		model.Quintile:       2,
		model.Biquintile:     2,
	}
}

// Merge returns the defaults overridden by overrides. Unknown types and
// negative orbs are rejected; an orb of zero disables the type.
func Merge(base, overrides Orbs) (Orbs, error) {
	out := make(Orbs, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if !k.Valid() {
			return nil, model.NewError(model.KindInvalidInput, "aspects.merge", fmt.Errorf("unknown aspect type %q", k))
		}
		if v < 0 || math.IsNaN(v) {
			return nil, model.NewError(model.KindInvalidInput, "aspects.merge", fmt.Errorf("orb for %s must not be negative", k))
		}
		out[k] = v
	}
	return out, nil
}

// Match is the aspect type chosen for a separation.
type Match struct {
	Type      model.AspectType
	Deviation float64
	Orb       float64
}

// Strength is 1 for an exact aspect, falling linearly to 0 at the orb edge.
func (m Match) Strength() float64 {
	if m.Orb <= 0 {
		return 1
	}
	return 1 - m.Deviation/m.Orb
}

// Matcher picks at most one aspect type for a separation.
type Matcher func(separation float64, orbFor func(model.AspectType) float64) (Match, bool)

// ScanOrder returns the first aspect type, in table order, whose orb
// contains the separation.
func ScanOrder(separation float64, orbFor func(model.AspectType) float64) (Match, bool) {
	for _, t := range model.AspectTypes {
		orb := orbFor(t)
		if orb <= 0 {
			continue
		}
		dev := math.Abs(separation - t.Angle())
		if dev <= orb {
			return Match{Type: t, Deviation: dev, Orb: orb}, true
		}
	}
	return Match{}, false
}

// NearestAngle returns the aspect type whose exact angle is closest to the
// separation among those whose orb contains it. Ties keep table order.
func NearestAngle(separation float64, orbFor func(model.AspectType) float64) (Match, bool) {
	var best Match
	found := false
	for _, t := range model.AspectTypes {
		orb := orbFor(t)
		if orb <= 0 {
			continue
		}
		dev := math.Abs(separation - t.Angle())
		if dev <= orb && (!found || dev < best.Deviation) {
			best = Match{Type: t, Deviation: dev, Orb: orb}
			found = true
		}
	}
	return best, found
}

// Option configures a Detector.
type Option func(*Detector)

// WithOrbs replaces the orb table. Use Merge to validate overrides first.
func WithOrbs(orbs Orbs) Option {
	return func(d *Detector) {
		if orbs != nil {
			d.orbs = orbs
		}
	}
}

// WithNearestAngle resolves overlapping orbs by the nearest exact angle
// instead of table order.
func WithNearestAngle() Option {
	return func(d *Detector) {
		d.match = NearestAngle
	}
}

// WithMatcher sets the matching rule.
func WithMatcher(m Matcher) Option {
	return func(d *Detector) {
		if m != nil {
			d.match = m
		}
	}
}

// Detector finds aspects between positions. It is immutable after
// construction and safe for concurrent use.
type Detector struct {
	orbs  Orbs
	match Matcher
}

// NewDetector creates a Detector with the default orbs and scan order.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{orbs: DefaultOrbs(), match: ScanOrder}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Orbs returns a copy of the detector's orb table.
func (d *Detector) Orbs() Orbs {
	out, _ := Merge(d.orbs, nil)
	return out
}

// Matcher returns the detector's matching rule.
func (d *Detector) Matcher() Matcher { return d.match }

// Between evaluates a single pair. The pair is put in canonical body order
// first, so Between(a, b) and Between(b, a) yield the same aspect.
func (d *Detector) Between(p1, p2 model.CelestialPosition) (model.Aspect, bool) {
	return d.BetweenScaled(p1, p2, 1)
}

// BetweenScaled is Between with every orb multiplied by factor.
func (d *Detector) BetweenScaled(p1, p2 model.CelestialPosition, factor float64) (model.Aspect, bool) {
	if p2.Body.Index() < p1.Body.Index() {
		p1, p2 = p2, p1
	}
	return d.Ordered(p1, p2, factor)
}

// Ordered is BetweenScaled without the canonical reordering: Body1 is
// always p1 and applying compares p1's speed against p2's. Cross-chart
// comparisons use it to keep each body with its chart.
func (d *Detector) Ordered(p1, p2 model.CelestialPosition, factor float64) (model.Aspect, bool) {
	sep := zodiac.Separation(p1.Longitude, p2.Longitude)
	m, ok := d.match(sep, func(t model.AspectType) float64 { return d.orbs[t] * factor })
	if !ok {
		return model.Aspect{}, false
	}
	return model.Aspect{
		Body1:    p1.Body,
		Body2:    p2.Body,
		Type:     m.Type,
		Angle:    m.Type.Angle(),
		Orb:      m.Deviation,
		Applying: p1.Speed > p2.Speed,
		Strength: m.Strength(),
	}, true
}

// Detect evaluates every unordered pair of positions once.
func (d *Detector) Detect(positions []model.CelestialPosition) []model.Aspect {
	out := make([]model.Aspect, 0)
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if a, ok := d.Between(positions[i], positions[j]); ok {
				out = append(out, a)
			}
		}
	}
	return out
}
