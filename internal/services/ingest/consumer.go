package ingestsvc

import (
	"context"
	"errors"
	"time"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/dedup"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/queue"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

// consume is the single worker loop. It drains the queue until the queue is
// shut down and empty, finishing the event in hand before exiting.
func (s *Service) consume(ctx context.Context) {
	defer close(s.consumerDone)
	for {
		ev, err := s.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Error("dequeue", logpkg.Err(err))
			continue
		}
		// The dequeued event is always completed, even mid-shutdown, so an
		// accepted event is never lost.
		s.process(context.WithoutCancel(ctx), ev)
	}
}

func (s *Service) process(ctx context.Context, ev event.Event) {
	t0 := time.Now()
	store := s.rt.Dedup()

	isNew, err := store.CheckAndMark(ctx, ev.Topic, ev.EventID)
	if err != nil {
		// The event stays unprocessed; at-least-once publishers redeliver.
		s.logger.Error("check and mark",
			logpkg.Str("topic", ev.Topic), logpkg.Str("event_id", ev.EventID), logpkg.Err(err))
		return
	}
	if !isNew {
		if err := store.IncrementCounter(ctx, dedup.CounterDuplicateDropped); err != nil {
			s.logger.Error("increment duplicate counter", logpkg.Err(err))
		}
		if s.metrics != nil {
			s.metrics.DuplicatesDropped.Inc()
		}
		s.logger.Debug("duplicate dropped",
			logpkg.Str("topic", ev.Topic), logpkg.Str("event_id", ev.EventID))
		return
	}

	st, err := store.PersistPayload(ctx, ev)
	if err != nil {
		// The mark without a payload is an orphan; startup recovery makes the
		// key admissible again.
		s.logger.Error("persist payload",
			logpkg.Str("topic", ev.Topic), logpkg.Str("event_id", ev.EventID), logpkg.Err(err))
		return
	}

	s.cache.Append(st)
	s.tail.publish(st)
	if s.metrics != nil {
		s.metrics.EventsProcessed.Inc()
	}
	s.logger.With(
		logpkg.Str("topic", st.Topic),
		logpkg.Str("event_id", st.EventID),
		logpkg.Int64("dur_ms", time.Since(t0).Milliseconds()),
	).Debug("ingest.processed")
}
