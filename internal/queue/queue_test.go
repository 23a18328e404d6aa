package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

func testEvent(eventID string) event.Event {
	return event.Event{
		Topic:     "orders",
		EventID:   eventID,
		Timestamp: "2026-08-29T10:00:00Z",
		Source:    "queue-test",
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(4, time.Second)
	ctx := context.Background()

	for _, eid := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, testEvent(eid)); err != nil {
			t.Fatalf("enqueue %s: %v", eid, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	for _, want := range []string{"a", "b", "c"} {
		ev, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if ev.EventID != want {
			t.Fatalf("got %s want %s", ev.EventID, want)
		}
	}
}

func TestEnqueueFullTimesOut(t *testing.T) {
	q := New(1, 20*time.Millisecond)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testEvent("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	start := time.Now()
	err := q.Enqueue(ctx, testEvent("b"))
	if !errors.Is(err, ErrFull) {
		t.Fatalf("want ErrFull, got %v", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Fatalf("enqueue should block for the timeout window")
	}
}

func TestEnqueueUnblocksOnDequeue(t *testing.T) {
	q := New(1, time.Second)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testEvent("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, testEvent("b")) }()

	time.Sleep(10 * time.Millisecond)
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked enqueue should succeed after dequeue, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("enqueue did not unblock")
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(4, time.Second)
	ctx := context.Background()

	got := make(chan event.Event, 1)
	go func() {
		ev, err := q.Dequeue(ctx)
		if err != nil {
			t.Errorf("dequeue: %v", err)
			return
		}
		got <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Enqueue(ctx, testEvent("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case ev := <-got:
		if ev.EventID != "a" {
			t.Fatalf("got %s want a", ev.EventID)
		}
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not wake")
	}
}

func TestShutdownDrainsThenCloses(t *testing.T) {
	q := New(4, time.Second)
	ctx := context.Background()

	for _, eid := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, testEvent(eid)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.Shutdown()
	q.Shutdown() // idempotent

	if err := q.Enqueue(ctx, testEvent("c")); !errors.Is(err, ErrClosed) {
		t.Fatalf("enqueue after shutdown = %v, want ErrClosed", err)
	}

	for _, want := range []string{"a", "b"} {
		ev, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("drain dequeue: %v", err)
		}
		if ev.EventID != want {
			t.Fatalf("got %s want %s", ev.EventID, want)
		}
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("dequeue on drained closed queue = %v, want ErrClosed", err)
	}
}

func TestDequeueHonorsContext(t *testing.T) {
	q := New(4, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}
