package cache

import (
	"fmt"
	"testing"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

func stored(eventID string) event.StoredEvent {
	return event.StoredEvent{
		Topic:     "orders",
		EventID:   eventID,
		Timestamp: "2026-08-29T10:00:00Z",
		Source:    "cache-test",
	}
}

func TestAppendAndSnapshotOrder(t *testing.T) {
	c := New(4)
	for _, eid := range []string{"a", "b", "c"} {
		c.Append(stored(eid))
	}
	snap := c.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	for i, want := range []string{"a", "b", "c"} {
		if snap[i].EventID != want {
			t.Fatalf("position %d: got %s want %s", i, snap[i].EventID, want)
		}
	}
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.Append(stored(fmt.Sprintf("e%d", i)))
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want capacity 3", c.Len())
	}
	snap := c.Snapshot()
	for i, want := range []string{"e2", "e3", "e4"} {
		if snap[i].EventID != want {
			t.Fatalf("position %d: got %s want %s", i, snap[i].EventID, want)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New(2)
	c.Append(stored("a"))
	snap := c.Snapshot()
	snap[0].EventID = "mutated"
	if got := c.Snapshot()[0].EventID; got != "a" {
		t.Fatalf("snapshot mutation leaked into cache: %s", got)
	}
}

func TestDefaultCapacity(t *testing.T) {
	c := New(0)
	if c.Cap() != DefaultCapacity {
		t.Fatalf("cap = %d, want %d", c.Cap(), DefaultCapacity)
	}
}
