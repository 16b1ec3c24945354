package api

import (
	"context"
	"net/http"
)

// StatsProvider defines the interface for getting service status.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler handles status requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /status requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.statsProvider.GetStats(r.Context()))
}
