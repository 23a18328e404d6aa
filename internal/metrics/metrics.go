// Package metrics exposes Prometheus instrumentation for the aggregator:
// ingestion counters, queue and cache gauges, and storage latency histograms
// wired into the storage layer's hook.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors on a private registry so multiple instances
// can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	EventsReceived    prometheus.Counter
	DuplicatesDropped prometheus.Counter
	EventsProcessed   prometheus.Counter
	PublishRejected   *prometheus.CounterVec

	QueueDepth prometheus.GaugeFunc
	CacheSize  prometheus.GaugeFunc

	storeReadSeconds   prometheus.Histogram
	storeCommitSeconds prometheus.Histogram
	storeCommitBytes   prometheus.Counter
}

// Options configure the gauge sources. Nil funcs report zero.
type Options struct {
	QueueDepth func() float64
	CacheSize  func() float64
}

// New builds a Metrics instance with its own registry.
func New(opts Options) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	queueDepth := opts.QueueDepth
	if queueDepth == nil {
		queueDepth = func() float64 { return 0 }
	}
	cacheSize := opts.CacheSize
	if cacheSize == nil {
		cacheSize = func() float64 { return 0 }
	}

	return &Metrics{
		registry: reg,
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "psla_events_received_total",
			Help: "Events accepted into the admission queue.",
		}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "psla_duplicates_dropped_total",
			Help: "Events dropped by the dedup store.",
		}),
		EventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "psla_events_processed_total",
			Help: "Unique events fully processed and persisted.",
		}),
		PublishRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "psla_publish_rejected_total",
			Help: "Publish requests rejected, by reason.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "psla_queue_depth",
			Help: "Current admission queue depth.",
		}, queueDepth),
		CacheSize: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "psla_cache_size",
			Help: "Current recent-events cache size.",
		}, cacheSize),
		storeReadSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "psla_store_read_seconds",
			Help:    "Storage point-read latency.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
		storeCommitSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "psla_store_commit_seconds",
			Help:    "Storage batch-commit latency.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 8),
		}),
		storeCommitBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "psla_store_commit_bytes_total",
			Help: "Bytes committed to storage.",
		}),
	}
}

// ObserveRead implements the storage metrics hook.
func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storeReadSeconds.Observe(elapsed.Seconds())
}

// ObserveBatchCommit implements the storage metrics hook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, bytes int) {
	m.storeCommitSeconds.Observe(elapsed.Seconds())
	m.storeCommitBytes.Add(float64(bytes))
}

// Registry exposes the underlying registry for testing.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
