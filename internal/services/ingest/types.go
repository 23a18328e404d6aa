package ingestsvc

import "errors"

var (
	// ErrCapacity reports that the admission queue stayed full past the
	// enqueue timeout. Publishers should retry later.
	ErrCapacity = errors.New("ingest: at capacity")
	// ErrShuttingDown reports a submit against a closed service.
	ErrShuttingDown = errors.New("ingest: shutting down")
)

// Stats is a point-in-time snapshot of the aggregator counters.
type Stats struct {
	Received         uint64   `json:"received"`
	DuplicateDropped uint64   `json:"duplicate_dropped"`
	UniqueProcessed  uint64   `json:"unique_processed"`
	Topics           []string `json:"topics"`
	TopicsCount      int      `json:"topics_count"`
	DuplicateRate    float64  `json:"duplicate_rate"`
	UptimeSeconds    float64  `json:"uptime_seconds"`
}

// Health is the liveness signal for the process.
type Health struct {
	Status         string `json:"status"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	CacheSize      int    `json:"cache_size"`
	ProcessedCount uint64 `json:"processed_count"`
}

// QueryOptions narrow a recent-events query.
type QueryOptions struct {
	// Topic restricts results to one topic when non-empty.
	Topic string
	// Limit caps the result size; zero uses the configured default.
	Limit int
	// Filter is an optional CEL expression evaluated per event.
	Filter string
}
