package ingestsvc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/cache"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/dedup"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/metrics"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/queue"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

// Service runs the ingestion pipeline for one aggregator instance.
type Service struct {
	rt      *runtime.Runtime
	logger  logpkg.Logger
	metrics *metrics.Metrics

	queue *queue.Queue
	cache *cache.Cache
	tail  *tailRegistry

	startedAt time.Time

	cancelConsumer context.CancelFunc
	consumerDone   chan struct{}
	closeOnce      sync.Once
}

// New returns a Service using a default logger.
func New(rt *runtime.Runtime) *Service {
	return NewWithLogger(rt, nil)
}

// NewWithLogger constructs the service with an injected logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("ingest")
	}
	cfg := rt.Config()
	return &Service{
		rt:     rt,
		logger: logger,
		queue:  queue.New(cfg.QueueCapacity, cfg.EnqueueTimeout()),
		cache:  cache.New(cfg.CacheCapacity),
		tail:   newTailRegistry(),
	}
}

// UseMetrics attaches Prometheus collectors. Must be called before Start.
func (s *Service) UseMetrics(m *metrics.Metrics) { s.metrics = m }

// QueueDepth returns the current admission queue depth.
func (s *Service) QueueDepth() int { return s.queue.Len() }

// CacheSize returns the current recent-events cache size.
func (s *Service) CacheSize() int { return s.cache.Len() }

// Start repairs orphaned dedup records, warms the cache from storage, and
// launches the consumer. It must be called once before Submit.
func (s *Service) Start(ctx context.Context) error {
	store := s.rt.Dedup()
	repaired, err := store.RecoverOrphans(ctx)
	if err != nil {
		return fmt.Errorf("orphan recovery: %w", err)
	}
	if repaired > 0 {
		s.logger.Info("startup recovery complete", logpkg.Int("repaired", repaired))
	}

	// Most-recent-first from storage, oldest-first into the cache.
	recent, err := store.LoadRecent("", s.cache.Cap())
	if err != nil {
		return fmt.Errorf("cache warm-up: %w", err)
	}
	for i := len(recent) - 1; i >= 0; i-- {
		s.cache.Append(recent[i])
	}
	if len(recent) > 0 {
		s.logger.Info("cache warmed", logpkg.Int("events", len(recent)))
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	s.cancelConsumer = cancel
	s.consumerDone = make(chan struct{})
	go s.consume(consumerCtx)
	s.startedAt = time.Now()
	return nil
}

// Submit validates and enqueues a single event, incrementing the received
// counter on acceptance. Duplicates are accepted here; the consumer drops
// them.
func (s *Service) Submit(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		switch {
		case errors.Is(err, queue.ErrFull):
			s.observeRejected("capacity")
			return fmt.Errorf("%w: queue full at %d", ErrCapacity, s.queue.Cap())
		case errors.Is(err, queue.ErrClosed):
			s.observeRejected("shutdown")
			return ErrShuttingDown
		default:
			return err
		}
	}
	if err := s.rt.Dedup().IncrementCounter(ctx, dedup.CounterReceived); err != nil {
		s.logger.Error("increment received counter", logpkg.Err(err))
	}
	if s.metrics != nil {
		s.metrics.EventsReceived.Inc()
	}
	return nil
}

// SubmitBatch validates the whole batch up front, then enqueues every member.
// A validation failure rejects the entire batch before any admission. It
// returns how many events were accepted.
func (s *Service) SubmitBatch(ctx context.Context, batch event.Batch) (int, error) {
	if err := batch.Validate(); err != nil {
		return 0, err
	}
	if max := s.rt.Config().MaxBatch; len(batch.Events) > max {
		return 0, fmt.Errorf("%w: batch exceeds %d events", event.ErrInvalid, max)
	}
	for i := range batch.Events {
		if err := s.Submit(ctx, batch.Events[i]); err != nil {
			return i, err
		}
	}
	return len(batch.Events), nil
}

// QueryRecent returns cached events, newest logical timestamp first.
func (s *Service) QueryRecent(ctx context.Context, opts QueryOptions) ([]event.StoredEvent, error) {
	cfg := s.rt.Config()
	limit := opts.Limit
	if limit <= 0 {
		limit = cfg.DefaultQueryLimit
	}
	if limit > cfg.MaxQueryLimit {
		limit = cfg.MaxQueryLimit
	}
	cfilter, err := newCELFilter(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: filter: %v", event.ErrInvalid, err)
	}

	snap := s.cache.Snapshot()
	out := make([]event.StoredEvent, 0, len(snap))
	for _, st := range snap {
		if opts.Topic != "" && st.Topic != opts.Topic {
			continue
		}
		if !cfilter.Eval(st) {
			continue
		}
		out = append(out, st)
	}
	// Order by the event's own timestamp, not arrival: out-of-order delivery
	// must not reorder query results. Processed time breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		ti, erri := out[i].TimestampTime()
		tj, errj := out[j].TimestampTime()
		if erri != nil || errj != nil {
			return out[i].ProcessedAt.After(out[j].ProcessedAt)
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ProcessedAt.After(out[j].ProcessedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SnapshotStats aggregates the durable counters and derived values.
func (s *Service) SnapshotStats(ctx context.Context) (Stats, error) {
	store := s.rt.Dedup()
	received, err := store.GetCounter(dedup.CounterReceived)
	if err != nil {
		return Stats{}, err
	}
	dropped, err := store.GetCounter(dedup.CounterDuplicateDropped)
	if err != nil {
		return Stats{}, err
	}
	unique, err := store.CountRecords()
	if err != nil {
		return Stats{}, err
	}
	topics, err := store.ListTopics()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Received:         received,
		DuplicateDropped: dropped,
		UniqueProcessed:  unique,
		Topics:           topics,
		TopicsCount:      len(topics),
		UptimeSeconds:    time.Since(s.startedAt).Seconds(),
	}
	if received > 0 {
		st.DuplicateRate = float64(dropped) / float64(received)
	}
	return st, nil
}

// Health reports process liveness and the queue/cache occupancy.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		Status:        "ok",
		QueueDepth:    s.queue.Len(),
		QueueCapacity: s.queue.Cap(),
		CacheSize:     s.cache.Len(),
	}
	if err := s.rt.CheckHealth(ctx); err != nil {
		h.Status = "degraded"
		return h
	}
	if n, err := s.rt.Dedup().CountRecords(); err == nil {
		h.ProcessedCount = n
	}
	return h
}

// Tail subscribes to live processed events, optionally narrowed by topic and
// a CEL filter. The returned cancel func releases the subscription.
func (s *Service) Tail(topic, filter string) (<-chan event.StoredEvent, func(), error) {
	return s.tail.subscribe(topic, filter)
}

// Close stops admission, waits for the consumer to drain the queue, and
// releases tail subscribers. Safe to call more than once.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.queue.Shutdown()
		if s.consumerDone != nil {
			<-s.consumerDone
		}
		if s.cancelConsumer != nil {
			s.cancelConsumer()
		}
		s.tail.closeAll()
	})
}

func (s *Service) observeRejected(reason string) {
	if s.metrics != nil {
		s.metrics.PublishRejected.WithLabelValues(reason).Inc()
	}
}
