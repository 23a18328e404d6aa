// Package cache holds the bounded in-memory window of processed events that
// serves recent-event queries without touching the store.
package cache

import (
	"sync"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

// DefaultCapacity applied when New receives a non-positive value.
const DefaultCapacity = 10000

// Cache is a fixed-capacity FIFO of processed events. When full, appending
// evicts the oldest entry. Reads take a snapshot so callers never hold the
// lock while filtering or sorting.
type Cache struct {
	mu    sync.RWMutex
	buf   []event.StoredEvent
	head  int // index of the oldest entry
	count int
}

// New builds a cache with the given capacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{buf: make([]event.StoredEvent, capacity)}
}

// Append adds a processed event, evicting the oldest when at capacity.
func (c *Cache) Append(ev event.StoredEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count < len(c.buf) {
		c.buf[(c.head+c.count)%len(c.buf)] = ev
		c.count++
		return
	}
	c.buf[c.head] = ev
	c.head = (c.head + 1) % len(c.buf)
}

// Snapshot returns the cached events in insertion order, oldest first.
func (c *Cache) Snapshot() []event.StoredEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]event.StoredEvent, c.count)
	for i := 0; i < c.count; i++ {
		out[i] = c.buf[(c.head+i)%len(c.buf)]
	}
	return out
}

// Len returns the number of cached events.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Cap returns the cache capacity.
func (c *Cache) Cap() int { return len(c.buf) }
