package handlers

import (
	"net/http"

	"github.com/lexfield/echomap/internal/storage"
)

// Version is the application version reported by the stats endpoint.
// Overridden at build time via -ldflags.
var Version = "dev"

// StatsHandler handles statistics endpoint requests.
type StatsHandler struct {
	store storage.Store
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(store storage.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// GetStats handles GET /api/stats - store-wide counters.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get stats", err)
		return
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		Conversations: stats.Conversations,
		Runs:          stats.Runs,
		LastRunAt:     stats.LastRunAt,
		Version:       Version,
	})
}
