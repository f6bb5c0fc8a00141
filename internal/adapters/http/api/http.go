// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ChartDependencies
	SynastryDependencies
	SkyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	chartsHandler   *ChartsHandler
	synastryHandler *SynastryHandler
	skyHandler      *SkyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		chartsHandler:   NewChartsHandler(deps),
		synastryHandler: NewSynastryHandler(deps),
		skyHandler:      NewSkyHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/charts", MetricsMiddleware(s.chartsHandler.HandlePostChart, "charts"))
	mux.HandleFunc("/v1/charts/batch", MetricsMiddleware(s.chartsHandler.HandlePostBatch, "charts_batch"))
	mux.HandleFunc("/v1/charts/{id}", MetricsMiddleware(s.chartsHandler.HandleGetChart, "chart"))
	mux.HandleFunc("/v1/synastry", MetricsMiddleware(s.synastryHandler.HandlePostSynastry, "synastry"))
	mux.HandleFunc("/v1/sky", MetricsMiddleware(s.skyHandler.HandleGetSky, "sky"))
}

// ChartDependencies covers chart computation and lookup.
type ChartDependencies interface {
	ComputeChart(ctx context.Context, req types.ChartRequest) model.Result[*model.Chart]
	Chart(ctx context.Context, id string) (*model.Chart, error)
	ComputeBatch(ctx context.Context, reqs []types.ChartRequest) ([]model.Result[*model.Chart], error)
}

// SynastryDependencies covers compatibility analysis.
type SynastryDependencies interface {
	ComputeSynastry(ctx context.Context, req types.SynastryRequest) model.Result[*model.CompatibilityReport]
}

// SkyDependencies covers the current sky.
type SkyDependencies interface {
	Sky(ctx context.Context, instant time.Time) model.Result[*model.SkySnapshot]
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}
