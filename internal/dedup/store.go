package dedup

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/fzhnf/pub-sub-log-aggregator/internal/event"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
	"github.com/fzhnf/pub-sub-log-aggregator/pkg/id"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

// Durable counter names.
const (
	CounterReceived         = "received"
	CounterDuplicateDropped = "duplicate_dropped"
)

// ErrAlreadyPersisted reports a second PersistPayload for the same key. It
// should not occur under correct consumer usage, since persistence only
// follows a new-key CheckAndMark result.
var ErrAlreadyPersisted = errors.New("dedup: payload already persisted")

// Ref identifies a dedup record.
type Ref struct {
	Topic   string
	EventID string
}

// Store is the persistent deduplication store. All mutations are serialized
// under the store's mutex and committed as single atomic batches.
type Store struct {
	db     *pebblestore.DB
	logger logpkg.Logger
	gen    *id.Generator

	mu sync.Mutex
}

// NewStore builds a Store on the given database.
func NewStore(db *pebblestore.DB, logger logpkg.Logger) *Store {
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("dedup")
	}
	return &Store{db: db, logger: logger, gen: id.NewGenerator()}
}

// CheckAndMark atomically inserts a dedup record if absent. It returns true
// when this call performed the insert (the event is new) and false when a
// record already existed (duplicate). Exactly one concurrent caller racing on
// the same key observes true.
func (s *Store) CheckAndMark(ctx context.Context, topic, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := keyIndex(topic, eventID)
	exists, err := s.db.Has(idx)
	if err != nil {
		return false, fmt.Errorf("dedup: check index: %w", err)
	}
	if exists {
		s.logger.Debug("duplicate detected", logpkg.Str("topic", topic), logpkg.Str("event_id", eventID))
		return false, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	var seen [8]byte
	binary.BigEndian.PutUint64(seen[:], uint64(time.Now().UnixMilli()))
	if err := b.Set(idx, seen[:], nil); err != nil {
		return false, err
	}
	if err := s.bumpTopic(b, topic, 1); err != nil {
		return false, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return false, fmt.Errorf("dedup: mark: %w", err)
	}
	s.logger.Debug("marked new", logpkg.Str("topic", topic), logpkg.Str("event_id", eventID))
	return true, nil
}

// FirstSeen returns the first-mark time of a dedup record, if present.
func (s *Store) FirstSeen(topic, eventID string) (time.Time, bool, error) {
	v, err := s.db.Get(keyIndex(topic, eventID))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if len(v) < 8 {
		return time.Time{}, false, fmt.Errorf("dedup: malformed index value for %s", topic)
	}
	ms := int64(binary.BigEndian.Uint64(v[:8]))
	return time.UnixMilli(ms).UTC(), true, nil
}

// PersistPayload durably inserts the full event, assigning processed_at and a
// processed-order id. Fails with ErrAlreadyPersisted on a repeated key.
func (s *Store) PersistPayload(ctx context.Context, ev event.Event) (event.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ek := keyEvent(ev.Topic, ev.EventID)
	exists, err := s.db.Has(ek)
	if err != nil {
		return event.StoredEvent{}, fmt.Errorf("dedup: check payload: %w", err)
	}
	if exists {
		return event.StoredEvent{}, fmt.Errorf("%w: %s:%s", ErrAlreadyPersisted, ev.Topic, ev.EventID)
	}

	pid := s.gen.Next()
	st := ev.Stored(pid.Time())
	body, err := event.EncodeStored(&st)
	if err != nil {
		return event.StoredEvent{}, fmt.Errorf("dedup: encode payload: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(ek, encodeRecord(pid.Bytes(), body), nil); err != nil {
		return event.StoredEvent{}, err
	}
	ref := appendFramedPair(nil, ev.Topic, ev.EventID)
	if err := b.Set(keyOrder(pid), ref, nil); err != nil {
		return event.StoredEvent{}, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return event.StoredEvent{}, fmt.Errorf("dedup: persist payload: %w", err)
	}
	return st, nil
}

// IncrementCounter durably increments a named counter by one. The
// read-modify-write runs under the store's own serialization.
func (s *Store) IncrementCounter(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyCounter(name)
	cur, err := s.readU64(key)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], cur+1)
	if err := b.Set(key, buf[:], nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// GetCounter returns the value of a named counter, zero when unset.
func (s *Store) GetCounter(name string) (uint64, error) {
	return s.readU64(keyCounter(name))
}

// ListTopics returns all topics with at least one dedup record, sorted.
func (s *Store) ListTopics() ([]string, error) {
	lo, hi := prefixBounds(topPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	topics := []string{}
	for ok := iter.First(); ok; ok = iter.Next() {
		topics = append(topics, string(iter.Key()[len(topPrefix):]))
	}
	return topics, nil
}

// CountRecords returns the number of dedup records (the derived
// unique-processed count), summed from per-topic counts.
func (s *Store) CountRecords() (uint64, error) {
	lo, hi := prefixBounds(topPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var total uint64
	for ok := iter.First(); ok; ok = iter.Next() {
		v := iter.Value()
		if len(v) >= 8 {
			total += binary.BigEndian.Uint64(v[:8])
		}
	}
	return total, nil
}

// LoadRecent returns up to limit stored events, most recently processed
// first, optionally restricted to one topic.
func (s *Store) LoadRecent(topic string, limit int) ([]event.StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	lo, hi := prefixBounds(ordPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]event.StoredEvent, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		refTopic, refID, okRef := parseFramedPair(iter.Value())
		if !okRef {
			continue
		}
		if topic != "" && refTopic != topic {
			continue
		}
		val, err := s.db.Get(keyEvent(refTopic, refID))
		if err != nil {
			s.logger.Warn("order index points at missing payload",
				logpkg.Str("topic", refTopic), logpkg.Str("event_id", refID))
			continue
		}
		_, body, okRec := decodeRecord(val)
		if !okRec {
			s.logger.Warn("corrupt payload record skipped",
				logpkg.Str("topic", refTopic), logpkg.Str("event_id", refID))
			continue
		}
		st, err := event.DecodeStored(body)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// FindOrphans returns all dedup records with no matching payload row, the
// crash window between CheckAndMark and PersistPayload.
func (s *Store) FindOrphans() ([]Ref, error) {
	lo, hi := prefixBounds(idxPrefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orphans []Ref
	for ok := iter.First(); ok; ok = iter.Next() {
		topic, eventID, okKey := parseFramedPair(iter.Key()[len(idxPrefix):])
		if !okKey {
			continue
		}
		exists, err := s.db.Has(keyEvent(topic, eventID))
		if err != nil {
			return nil, err
		}
		if !exists {
			orphans = append(orphans, Ref{Topic: topic, EventID: eventID})
		}
	}
	return orphans, nil
}

// DeleteRecord removes a dedup record so the key can be marked new again.
// Used only by recovery. Idempotent.
func (s *Store) DeleteRecord(ctx context.Context, topic, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := keyIndex(topic, eventID)
	exists, err := s.db.Has(idx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(idx, nil); err != nil {
		return err
	}
	if err := s.bumpTopic(b, topic, -1); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// RecoverOrphans deletes all orphaned dedup records in one atomic sweep and
// returns how many were repaired. Run at startup, before the consumer drains
// new work.
func (s *Store) RecoverOrphans(ctx context.Context) (int, error) {
	orphans, err := s.FindOrphans()
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()
	perTopic := map[string]int64{}
	for _, o := range orphans {
		if err := b.Delete(keyIndex(o.Topic, o.EventID), nil); err != nil {
			return 0, err
		}
		perTopic[o.Topic]++
	}
	for topic, n := range perTopic {
		if err := s.bumpTopic(b, topic, -n); err != nil {
			return 0, err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	s.logger.Warn("recovered orphaned dedup records", logpkg.Int("count", len(orphans)))
	return len(orphans), nil
}

// bumpTopic adjusts the per-topic record count inside a pending batch. The
// caller holds the store mutex, so reading the committed value is safe.
func (s *Store) bumpTopic(b *pebble.Batch, topic string, delta int64) error {
	key := keyTopic(topic)
	cur, err := s.readU64(key)
	if err != nil {
		return err
	}
	next := int64(cur) + delta
	if next <= 0 {
		return b.Delete(key, nil)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(next))
	return b.Set(key, buf[:], nil)
}

func (s *Store) readU64(key []byte) (uint64, error) {
	v, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(v) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v[:8]), nil
}
