// Package ephemeris defines the contract for planetary position sources.
//
// The core never computes orbits itself. A Provider returns geocentric
// ecliptic coordinates for a Julian Day; implementations live in
// internal/adapters/ephemeris and are wrapped here by decorators.
package ephemeris

import (
	"context"
	"fmt"

	"github.com/okian/astrolabe/internal/domain/model"
)

// RawPosition is an unnormalized ecliptic position as delivered by a source.
type RawPosition struct {
	Longitude float64 `json:"lon" yaml:"lon"`
	Latitude  float64 `json:"lat" yaml:"lat"`
	Distance  float64 `json:"dist" yaml:"dist"`
	Speed     float64 `json:"speed" yaml:"speed"`
}

// Positions maps bodies to their raw positions.
type Positions map[model.Body]RawPosition

// Clone returns an independent copy of p.
func (p Positions) Clone() Positions {
	out := make(Positions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Provider returns positions for a Julian Day (UT). loc may be nil for
// geocentric sources. For equal inputs a call is effectively pure.
type Provider interface {
	Name() string
	Positions(ctx context.Context, jd float64, loc *model.Location) (Positions, error)
}

// NewError classifies a provider failure. detail is passed through to the caller.
func NewError(provider string, detail any, err error) *model.Error {
	e := model.NewError(model.KindEphemeris, "ephemeris."+provider, err)
	e.Detail = detail
	return e
}

// Static serves a fixed set of positions regardless of the requested date.
type Static struct {
	name      string
	positions Positions
}

// NewStatic creates a Static provider.
func NewStatic(positions Positions) *Static {
	return &Static{name: "static", positions: positions.Clone()}
}

// Name implements Provider.
func (s *Static) Name() string { return s.name }

// Positions implements Provider.
func (s *Static) Positions(ctx context.Context, _ float64, _ *model.Location) (Positions, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("static positions: %w", err)
	}
	return s.positions.Clone(), nil
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, jd float64, loc *model.Location) (Positions, error)

// Name implements Provider.
func (f Func) Name() string { return "func" }

// Positions implements Provider.
func (f Func) Positions(ctx context.Context, jd float64, loc *model.Location) (Positions, error) {
	return f(ctx, jd, loc)
}
