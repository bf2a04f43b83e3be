package handler

import (
	"net/http"

	"github.com/alanyoungcy/tradeloader/internal/ingest"
)

// Snapshotter reports per-source state. *ingest.Supervisor satisfies it.
type Snapshotter interface {
	Snapshot() []ingest.Status
}

// StatusHandler serves the per-source supervisor state.
type StatusHandler struct {
	mode    string
	sources Snapshotter
}

// NewStatusHandler creates a StatusHandler. sources may be nil in modes
// without a supervisor.
func NewStatusHandler(mode string, sources Snapshotter) *StatusHandler {
	return &StatusHandler{mode: mode, sources: sources}
}

// GetStatus responds with the mode and one entry per source.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sources := []ingest.Status{}
	if h.sources != nil {
		sources = h.sources.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    h.mode,
		"sources": sources,
	})
}
