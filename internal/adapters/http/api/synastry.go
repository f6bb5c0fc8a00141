package api

import (
	"net/http"

	"github.com/okian/astrolabe/internal/domain/types"
)

// SynastryHandler handles compatibility requests.
type SynastryHandler struct {
	deps SynastryDependencies
}

// NewSynastryHandler creates a new synastry handler.
func NewSynastryHandler(deps SynastryDependencies) *SynastryHandler {
	return &SynastryHandler{deps: deps}
}

// HandlePostSynastry handles POST /v1/synastry requests.
func (h *SynastryHandler) HandlePostSynastry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.SynastryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeResult(w, h.deps.ComputeSynastry(r.Context(), req))
}
