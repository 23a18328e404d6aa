package controllers

import (
	"net/http"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/metrics"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	ingestsvc "github.com/fzhnf/pub-sub-log-aggregator/internal/services/ingest"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	events  *EventsController
	metrics *metrics.Metrics
}

// NewControllerRegistry creates a new controller registry. The metrics
// argument may be nil.
func NewControllerRegistry(rt *runtime.Runtime, svc *ingestsvc.Service, m *metrics.Metrics) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt, svc),
		events:  NewEventsController(rt, svc),
		metrics: m,
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.events.RegisterRoutes(mux)
	if r.metrics != nil {
		mux.Handle("/metrics", r.metrics.Handler())
	}
}
