package api

import (
	"net/http"

	"github.com/okian/astrolabe/internal/domain/types"
)

// ChartsHandler handles chart requests.
type ChartsHandler struct {
	deps ChartDependencies
}

// NewChartsHandler creates a new charts handler.
func NewChartsHandler(deps ChartDependencies) *ChartsHandler {
	return &ChartsHandler{deps: deps}
}

// HandlePostChart handles POST /v1/charts requests.
func (h *ChartsHandler) HandlePostChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.ChartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeResult(w, h.deps.ComputeChart(r.Context(), req))
}

// HandleGetChart handles GET /v1/charts/{id} requests.
func (h *ChartsHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingID)
		return
	}
	c, err := h.deps.Chart(r.Context(), id)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandlePostBatch handles POST /v1/charts/batch requests. Item failures are
// reported inside their envelopes; the response itself is 200.
func (h *ChartsHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	results, err := h.deps.ComputeBatch(r.Context(), req.Items)
	if err != nil {
		writeKindError(w, err)
		return
	}
	resp := types.BatchResponse{Items: make([]types.ChartEnvelope, len(results))}
	for i, res := range results {
		resp.Items[i] = types.FromResult(res)
	}
	writeJSON(w, http.StatusOK, resp)
}
