// Package houses partitions the ecliptic into twelve houses.
//
// Each house system is a Strategy registered under its selector. Equal,
// whole sign, Porphyry, Regiomontanus and Campanus carry their own geometry;
// the remaining quadrant systems resolve through the Porphyry trisection and
// are reported as approximate until a caller registers a dedicated strategy.
package houses

import (
	"fmt"
	"math"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/zodiac"
)

const (
	houseCount = 12
	// minArc is the smallest house width accepted as distinct, in degrees.
	minArc = 1e-9
	// arcTolerance bounds the rounding drift of the arc sum around 360.
	arcTolerance = 1e-6
)

// Strategy computes the 12 cusp longitudes for a Julian Day and location.
type Strategy func(jd float64, loc model.Location) ([12]float64, error)

type registration struct {
	strategy    Strategy
	approximate bool
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithStrategy registers geometry for a house system, replacing the default.
// Selectors outside the supported set are ignored.
func WithStrategy(system model.HouseSystem, s Strategy) Option {
	return func(c *Calculator) {
		if _, err := model.ParseHouseSystem(string(system)); err != nil || s == nil {
			return
		}
		c.strategies[system] = registration{strategy: s}
	}
}

// Calculator resolves house systems to strategies. The registry is built
// once and only read afterwards, so a Calculator is safe for concurrent use.
type Calculator struct {
	strategies map[model.HouseSystem]registration
}

// NewCalculator creates a Calculator with every supported selector registered.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		strategies: map[model.HouseSystem]registration{
			model.Equal:         {strategy: EqualHouses},
			model.WholeSign:     {strategy: WholeSignHouses},
			model.Porphyrius:    {strategy: PorphyryHouses},
			model.Regiomontanus: {strategy: RegiomontanusHouses},
			model.Campanus:      {strategy: CampanusHouses},
			model.Placidus:      {strategy: PorphyryHouses, approximate: true},
			model.Koch:          {strategy: PorphyryHouses, approximate: true},
			model.Topocentric:   {strategy: PorphyryHouses, approximate: true},
			model.Alcabitius:    {strategy: PorphyryHouses, approximate: true},
			model.Morinus:       {strategy: PorphyryHouses, approximate: true},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cusps is a validated house partition.
type Cusps struct {
	System      model.HouseSystem
	Longitudes  [12]float64
	Approximate bool
}

// Calculate runs the strategy registered for system and validates its output.
func (c *Calculator) Calculate(system model.HouseSystem, jd float64, loc model.Location) (Cusps, error) {
	const op = "houses.calculate"
	reg, ok := c.strategies[system]
	if !ok {
		return Cusps{}, model.NewError(model.KindInvalidInput, op, fmt.Errorf("unknown house system %q", system))
	}

	lons, err := reg.strategy(jd, loc)
	if err != nil {
		return Cusps{}, model.NewError(model.KindHouseCalculation, op, fmt.Errorf("%s: %w", system, err))
	}
	for i := range lons {
		lons[i] = zodiac.Normalize(lons[i])
	}
	if err := Validate(lons); err != nil {
		e := model.NewError(model.KindHouseCalculation, op, fmt.Errorf("%s at latitude %.4f: %w", system, loc.Latitude, err))
		e.Detail = map[string]any{"system": system, "cusps": lons}
		return Cusps{}, e
	}
	return Cusps{System: system, Longitudes: lons, Approximate: reg.approximate}, nil
}

// Validate checks that cusps are finite, distinct and circularly ascending,
// i.e. that the forward arcs between consecutive cusps sum to one turn.
func Validate(cusps [12]float64) error {
	total := 0.0
	for i := 0; i < houseCount; i++ {
		if math.IsNaN(cusps[i]) || math.IsInf(cusps[i], 0) {
			return fmt.Errorf("cusp %d is not finite", i+1)
		}
		next := (i + 1) % houseCount
		arc := zodiac.Normalize(cusps[next] - cusps[i])
		if arc < minArc {
			return fmt.Errorf("cusps %d and %d coincide", i+1, next+1)
		}
		total += arc
	}
	if math.Abs(total-360) > arcTolerance {
		return fmt.Errorf("cusps are not in ascending order (arcs sum to %.4f)", total)
	}
	return nil
}

// Assign returns the house containing lon. A longitude that matches no
// interval because of a boundary tie falls back to house 1.
func Assign(cusps [12]float64, lon float64) int {
	lon = zodiac.Normalize(lon)
	for i := 0; i < houseCount; i++ {
		start, end := cusps[i], cusps[(i+1)%houseCount]
		if start <= end {
			if lon >= start && lon < end {
				return i + 1
			}
			continue
		}
		if lon >= start || lon < end {
			return i + 1
		}
	}
	return 1
}

// HouseCusps converts validated longitudes into cusp records.
func (c Cusps) HouseCusps() []model.HouseCusp {
	out := make([]model.HouseCusp, houseCount)
	for i, lon := range c.Longitudes {
		out[i] = zodiac.Cusp(i+1, lon)
	}
	return out
}
