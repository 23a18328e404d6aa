// Package event defines the aggregator's event model: the transient
// producer-supplied Event, the durable StoredEvent, and structural validation.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/sugawarayuuta/sonnet"
)

// Structural limits enforced before an event reaches the core.
const (
	MaxTopicLen   = 255
	MaxEventIDLen = 128
	MaxSourceLen  = 255
	MaxBatch      = 1000
)

// ErrInvalid is the sentinel wrapped by all structural validation failures.
var ErrInvalid = errors.New("invalid event")

// Event is a producer-supplied event. Identity for deduplication is the
// (Topic, EventID) pair; payload differences between events with the same
// identity are ignored.
type Event struct {
	Topic     string                 `json:"topic"`
	EventID   string                 `json:"event_id"`
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
}

// Validate checks structural validity: field presence, byte-length limits,
// and timestamp parseability. The timestamp is validated only; it is stored
// verbatim, never normalized.
func (e *Event) Validate() error {
	if e.Topic == "" || len(e.Topic) > MaxTopicLen {
		return fmt.Errorf("%w: topic must be 1..%d bytes", ErrInvalid, MaxTopicLen)
	}
	if e.EventID == "" || len(e.EventID) > MaxEventIDLen {
		return fmt.Errorf("%w: event_id must be 1..%d bytes", ErrInvalid, MaxEventIDLen)
	}
	if e.Source == "" || len(e.Source) > MaxSourceLen {
		return fmt.Errorf("%w: source must be 1..%d bytes", ErrInvalid, MaxSourceLen)
	}
	if _, err := ParseTimestamp(e.Timestamp); err != nil {
		return fmt.Errorf("%w: timestamp %q is not ISO-8601", ErrInvalid, e.Timestamp)
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp. RFC 3339 forms (with or
// without fractional seconds) and zone-less local forms are accepted.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}

// Batch is the unit accepted by the publish surface.
type Batch struct {
	Events []Event `json:"events"`
}

// Validate checks batch bounds and every member event. The whole batch is
// rejected when any event fails, before anything is enqueued.
func (b *Batch) Validate() error {
	if len(b.Events) == 0 {
		return fmt.Errorf("%w: batch must contain at least one event", ErrInvalid)
	}
	if len(b.Events) > MaxBatch {
		return fmt.Errorf("%w: batch exceeds %d events", ErrInvalid, MaxBatch)
	}
	for i := range b.Events {
		if err := b.Events[i].Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// StoredEvent is the durable form of a processed event. ProcessedAt is
// server-assigned at persistence time.
type StoredEvent struct {
	Topic       string                 `json:"topic"`
	EventID     string                 `json:"event_id"`
	Timestamp   string                 `json:"timestamp"`
	Source      string                 `json:"source"`
	Payload     map[string]interface{} `json:"payload"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// Stored converts the event into its durable form.
func (e *Event) Stored(processedAt time.Time) StoredEvent {
	return StoredEvent{
		Topic:       e.Topic,
		EventID:     e.EventID,
		Timestamp:   e.Timestamp,
		Source:      e.Source,
		Payload:     e.Payload,
		ProcessedAt: processedAt,
	}
}

// TimestampTime returns the parsed logical timestamp. Events reaching durable
// storage have passed Validate, so parse failures are not expected there.
func (s *StoredEvent) TimestampTime() (time.Time, error) {
	return ParseTimestamp(s.Timestamp)
}

// EncodeStored serializes a StoredEvent for the payload table.
func EncodeStored(s *StoredEvent) ([]byte, error) {
	return sonnet.Marshal(s)
}

// DecodeStored deserializes a StoredEvent from the payload table.
func DecodeStored(b []byte) (StoredEvent, error) {
	var s StoredEvent
	if err := sonnet.Unmarshal(b, &s); err != nil {
		return StoredEvent{}, err
	}
	return s, nil
}
