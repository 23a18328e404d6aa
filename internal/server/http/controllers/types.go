package controllers

import "github.com/fzhnf/pub-sub-log-aggregator/internal/event"

// Common request/response types for HTTP controllers

// publishReq carries one or more events to publish. A bare event object is
// also accepted and treated as a batch of one.
type publishReq struct {
	Events []event.Event `json:"events"`
}

// publishResp reports how many events were admitted.
type publishResp struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

// eventsResp wraps a recent-events query result.
type eventsResp struct {
	Events []event.StoredEvent `json:"events"`
	Count  int                 `json:"count"`
}
