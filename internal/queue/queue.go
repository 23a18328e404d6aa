package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

// Defaults applied when New receives non-positive values.
const (
	DefaultCapacity       = 10000
	DefaultEnqueueTimeout = 5 * time.Second
)

var (
	// ErrFull reports that the queue stayed full for the whole enqueue
	// timeout window.
	ErrFull = errors.New("queue: full")
	// ErrClosed reports an operation on a shut-down queue. Dequeue returns
	// it only once all queued items have been drained.
	ErrClosed = errors.New("queue: closed")
)

// Queue is a bounded FIFO of events. Safe for concurrent use.
type Queue struct {
	ch             chan event.Event
	done           chan struct{}
	enqueueTimeout time.Duration

	closeOnce sync.Once
}

// New builds a queue with the given capacity and enqueue timeout.
func New(capacity int, enqueueTimeout time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if enqueueTimeout <= 0 {
		enqueueTimeout = DefaultEnqueueTimeout
	}
	return &Queue{
		ch:             make(chan event.Event, capacity),
		done:           make(chan struct{}),
		enqueueTimeout: enqueueTimeout,
	}
}

// Enqueue appends ev, blocking up to the enqueue timeout when full.
func (q *Queue) Enqueue(ctx context.Context, ev event.Event) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	timer := time.NewTimer(q.enqueueTimeout)
	defer timer.Stop()
	select {
	case q.ch <- ev:
		return nil
	case <-q.done:
		return ErrClosed
	case <-timer.C:
		return ErrFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest event, blocking until one is available. After
// Shutdown it keeps returning queued items until the queue is empty, then
// fails with ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (event.Event, error) {
	// Prefer buffered items so shutdown never loses accepted work.
	select {
	case ev := <-q.ch:
		return ev, nil
	default:
	}

	select {
	case ev := <-q.ch:
		return ev, nil
	case <-q.done:
		select {
		case ev := <-q.ch:
			return ev, nil
		default:
			return event.Event{}, ErrClosed
		}
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// Len returns the current number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Shutdown stops admission. Idempotent; pending Enqueue calls fail with
// ErrClosed and consumers drain the remainder.
func (q *Queue) Shutdown() {
	q.closeOnce.Do(func() { close(q.done) })
}
