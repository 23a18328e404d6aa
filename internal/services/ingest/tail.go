package ingestsvc

import (
	"sync"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
)

// tailBufLen is the per-subscriber buffer; slow readers lose events rather
// than stalling the consumer.
const tailBufLen = 64

type tailSub struct {
	ch     chan event.StoredEvent
	topic  string
	filter celFilter
}

// tailRegistry fans processed events out to live subscribers.
type tailRegistry struct {
	mu     sync.Mutex
	subs   map[int]*tailSub
	nextID int
	closed bool
}

func newTailRegistry() *tailRegistry {
	return &tailRegistry{subs: map[int]*tailSub{}}
}

func (r *tailRegistry) subscribe(topic, filter string) (<-chan event.StoredEvent, func(), error) {
	cfilter, err := newCELFilter(filter)
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrShuttingDown
	}
	id := r.nextID
	r.nextID++
	sub := &tailSub{ch: make(chan event.StoredEvent, tailBufLen), topic: topic, filter: cfilter}
	r.subs[id] = sub
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if s, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel, nil
}

func (r *tailRegistry) publish(st event.StoredEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.topic != "" && sub.topic != st.Topic {
			continue
		}
		if !sub.filter.Eval(st) {
			continue
		}
		select {
		case sub.ch <- st:
		default:
		}
	}
}

func (r *tailRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, sub := range r.subs {
		delete(r.subs, id)
		close(sub.ch)
	}
}
