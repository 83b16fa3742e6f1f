package api

import (
	"net/http"
	"time"
)

// StatsProvider reports service state.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
	now      func() time.Time
}

// NewStatsHandler returns a StatsHandler reading from p.
func NewStatsHandler(p StatsProvider) *StatsHandler {
	return &StatsHandler{provider: p, now: time.Now}
}

// HandleStats writes the provider snapshot stamped with the server time.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.provider.GetStats()
	if snapshot == nil {
		snapshot = map[string]interface{}{}
	}
	snapshot["serverTime"] = h.now().UTC().Format(time.RFC3339)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, snapshot)
}
