// Package types contains the JSON envelopes shared by the HTTP API and its clients.
package types

import (
	"github.com/okian/astrolabe/internal/domain/aspects"
	"github.com/okian/astrolabe/internal/domain/chart"
	"github.com/okian/astrolabe/internal/domain/model"
)

// ChartRequest asks for one natal chart.
type ChartRequest struct {
	BirthData        model.BirthData    `json:"birth_data"`
	HouseSystem      string             `json:"house_system,omitempty"`
	ZodiacType       string             `json:"zodiac_type,omitempty"`
	Orbs             map[string]float64 `json:"orbs,omitempty"`
	IncludeAsteroids bool               `json:"include_asteroids,omitempty"`
}

// Options converts the request into chart options. Orb keys are passed
// through unchecked; the assembler rejects unknown aspect types.
func (r ChartRequest) Options() chart.Options { //nolint:gocritic // hugeParam: request is a value type
	var orbs aspects.Orbs
	if len(r.Orbs) > 0 {
		orbs = make(aspects.Orbs, len(r.Orbs))
		for k, v := range r.Orbs {
			orbs[model.AspectType(k)] = v
		}
	}
	return chart.Options{
		HouseSystem:      model.HouseSystem(r.HouseSystem),
		ZodiacType:       model.ZodiacType(r.ZodiacType),
		AspectOrbs:       orbs,
		IncludeAsteroids: r.IncludeAsteroids,
	}
}

// BatchRequest asks for several charts at once.
type BatchRequest struct {
	Items []ChartRequest `json:"items"`
}

// SynastryRequest compares two charts, either stored ones by id or fresh
// ones computed from birth data.
type SynastryRequest struct {
	ChartA  string        `json:"chart_a,omitempty"`
	ChartB  string        `json:"chart_b,omitempty"`
	PersonA *ChartRequest `json:"person_a,omitempty"`
	PersonB *ChartRequest `json:"person_b,omitempty"`
}

// ByID reports whether the request references stored charts.
func (r SynastryRequest) ByID() bool {
	return r.ChartA != "" || r.ChartB != ""
}

// Envelope carries a calculation result over the wire.
type Envelope[T any] struct {
	Data      T              `json:"data,omitempty"`
	Error     *model.Failure `json:"error,omitempty"`
	ElapsedMs float64        `json:"elapsed_ms"`
	Accuracy  model.Accuracy `json:"accuracy"`
}

// OK reports whether the envelope holds a value.
func (e Envelope[T]) OK() bool { return e.Error == nil }

// FromResult converts a domain result into an envelope.
func FromResult[T any](r model.Result[T]) Envelope[T] {
	return Envelope[T]{
		Data:      r.Value,
		Error:     r.Failure,
		ElapsedMs: float64(r.Elapsed.Microseconds()) / 1000,
		Accuracy:  r.Accuracy,
	}
}

// Envelopes returned by the API.
type (
	ChartEnvelope    = Envelope[*model.Chart]
	SynastryEnvelope = Envelope[*model.CompatibilityReport]
	SkyEnvelope      = Envelope[*model.SkySnapshot]
)

// BatchResponse holds one envelope per requested item, in request order.
type BatchResponse struct {
	Items []ChartEnvelope `json:"items"`
}

// ErrorResponse is returned for requests that never reached a calculation.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
