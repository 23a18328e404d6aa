package controllers

import (
	"net/http"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	ingestsvc "github.com/fzhnf/pub-sub-log-aggregator/internal/services/ingest"
)

// GeneralController handles health and stats endpoints.
type GeneralController struct {
	rt  *runtime.Runtime
	svc *ingestsvc.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *ingestsvc.Service) *GeneralController {
	return &GeneralController{rt: rt, svc: svc}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/stats", c.handleStats)
}

// handleHealth returns liveness plus queue and cache occupancy. Returns 503
// when storage is unreachable.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := c.svc.Health(r.Context())
	if h.Status != "ok" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		writeBody(w, h)
		return
	}
	writeJSON(w, h)
}

// handleStats aggregates the durable counters and derived rates.
func (c *GeneralController) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.svc.SnapshotStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	if stats.Topics == nil {
		stats.Topics = []string{}
	}
	writeJSON(w, stats)
}
