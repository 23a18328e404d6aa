package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/sugawarayuuta/sonnet"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	ingestsvc "github.com/fzhnf/pub-sub-log-aggregator/internal/services/ingest"
)

// maxPublishBody bounds publish request bodies.
const maxPublishBody = 8 << 20

// EventsController handles publish, recent-event queries, and live tailing.
type EventsController struct {
	rt  *runtime.Runtime
	svc *ingestsvc.Service
}

// NewEventsController creates a new events controller.
func NewEventsController(rt *runtime.Runtime, svc *ingestsvc.Service) *EventsController {
	return &EventsController{rt: rt, svc: svc}
}

// RegisterRoutes registers event routes with the given mux.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/publish", c.handlePublish)
	mux.HandleFunc("/v1/events", c.handleEvents)
	mux.HandleFunc("/v1/events/tail", c.handleTailSSE)
}

// handlePublish admits a batch of events. The whole batch is validated before
// any admission; 202 on acceptance, 400 on invalid input, 503 on
// backpressure or shutdown.
func (c *EventsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPublishBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	batch, err := decodePublish(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := c.svc.SubmitBatch(r.Context(), batch)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ingestsvc.ErrCapacity), errors.Is(err, ingestsvc.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "publish failed")
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeBody(w, publishResp{Status: "accepted", Accepted: accepted})
}

func decodePublish(body []byte) (event.Batch, error) {
	var req publishReq
	if err := sonnet.Unmarshal(body, &req); err == nil && len(req.Events) > 0 {
		return event.Batch{Events: req.Events}, nil
	}
	// Bare event object: a batch of one.
	var single event.Event
	if err := sonnet.Unmarshal(body, &single); err == nil && single.Topic != "" {
		return event.Batch{Events: []event.Event{single}}, nil
	}
	return event.Batch{}, errors.New("body must be an event or {\"events\": [...]}")
}

// handleEvents serves recent processed events, newest event timestamp first.
// Query parameters: topic, limit, filter (CEL).
func (c *EventsController) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	out, err := c.svc.QueryRecent(r.Context(), ingestsvc.QueryOptions{
		Topic:  q.Get("topic"),
		Limit:  parseLimit(q.Get("limit")),
		Filter: q.Get("filter"),
	})
	if err != nil {
		if errors.Is(err, event.ErrInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if out == nil {
		out = []event.StoredEvent{}
	}
	writeJSON(w, eventsResp{Events: out, Count: len(out)})
}

// handleTailSSE streams newly processed events as Server-Sent Events.
// Query parameters: topic, filter (CEL).
func (c *EventsController) handleTailSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	ch, cancel, err := c.svc.Tail(q.Get("topic"), q.Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			if err := writeSSE(w, st); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, st event.StoredEvent) error {
	b, err := sonnet.Marshal(st)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
