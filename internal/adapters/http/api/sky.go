package api

import (
	"net/http"
	"time"
)

// SkyHandler handles current-sky requests.
type SkyHandler struct {
	deps SkyDependencies
	now  func() time.Time
}

// NewSkyHandler creates a new sky handler.
func NewSkyHandler(deps SkyDependencies) *SkyHandler {
	return &SkyHandler{deps: deps, now: time.Now}
}

// HandleGetSky handles GET /v1/sky?at=RFC3339 requests. Without at, the
// current time is used.
func (h *SkyHandler) HandleGetSky(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	instant := h.now()
	if at := r.URL.Query().Get("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidTime)
			return
		}
		instant = t
	}
	writeResult(w, h.deps.Sky(r.Context(), instant))
}
