package dedup

import (
	"encoding/binary"

	"github.com/fzhnf/pub-sub-log-aggregator/pkg/id"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - dd/idx/{uvarint topic_len}{topic}{event_id} -> first_seen ms (8B BE)
// - dd/evt/{uvarint topic_len}{topic}{event_id} -> framed StoredEvent record
// - dd/ord/{id16}                               -> key ref (framed topic + event_id)
// - dd/top/{topic}                              -> record count (8B BE)
// - dd/ctr/{name}                               -> counter value (8B BE)
//
// The topic length prefix keeps (topic, event_id) pairs distinct even when
// names embed separator bytes; without it ("a/b", "c") and ("a", "b/c") would
// collide. The id16 of the order index is assignment-time ordered, so a
// descending scan yields most-recently-processed first.

var (
	idxPrefix = []byte("dd/idx/")
	evtPrefix = []byte("dd/evt/")
	ordPrefix = []byte("dd/ord/")
	topPrefix = []byte("dd/top/")
	ctrPrefix = []byte("dd/ctr/")
)

// appendFramedPair appends uvarint(len(topic)) + topic + eventID.
func appendFramedPair(dst []byte, topic, eventID string) []byte {
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(topic)))
	dst = append(dst, tmp[:n]...)
	dst = append(dst, topic...)
	dst = append(dst, eventID...)
	return dst
}

// parseFramedPair splits a framed topic/event_id pair.
func parseFramedPair(b []byte) (topic, eventID string, ok bool) {
	tlen, n := binary.Uvarint(b)
	if n <= 0 || int(tlen) > len(b)-n {
		return "", "", false
	}
	topic = string(b[n : n+int(tlen)])
	eventID = string(b[n+int(tlen):])
	if topic == "" || eventID == "" {
		return "", "", false
	}
	return topic, eventID, true
}

// keyIndex builds the dedup-index key for a pair.
func keyIndex(topic, eventID string) []byte {
	k := make([]byte, 0, len(idxPrefix)+len(topic)+len(eventID)+2)
	k = append(k, idxPrefix...)
	return appendFramedPair(k, topic, eventID)
}

// keyEvent builds the payload-table key for a pair.
func keyEvent(topic, eventID string) []byte {
	k := make([]byte, 0, len(evtPrefix)+len(topic)+len(eventID)+2)
	k = append(k, evtPrefix...)
	return appendFramedPair(k, topic, eventID)
}

// keyOrder builds the processed-order index key.
func keyOrder(pid id.ID) []byte {
	k := make([]byte, 0, len(ordPrefix)+16)
	k = append(k, ordPrefix...)
	return append(k, pid[:]...)
}

// keyTopic builds the per-topic record count key.
func keyTopic(topic string) []byte {
	k := make([]byte, 0, len(topPrefix)+len(topic))
	k = append(k, topPrefix...)
	return append(k, topic...)
}

// keyCounter builds a named counter key.
func keyCounter(name string) []byte {
	k := make([]byte, 0, len(ctrPrefix)+len(name))
	k = append(k, ctrPrefix...)
	return append(k, name...)
}

// prefixBounds returns [prefix, upper) iterator bounds covering every key
// that extends prefix. The upper bound is the prefix successor: the last
// byte incremented, trailing 0xFF bytes dropped. Appending 0xFF instead
// would miss keys whose suffix itself starts with 0xFF, such as the uvarint
// length byte of a 255-byte topic.
func prefixBounds(prefix []byte) (lo, hi []byte) {
	lo = prefix
	hi = append([]byte{}, prefix...)
	for i := len(hi) - 1; i >= 0; i-- {
		if hi[i] < 0xFF {
			hi[i]++
			hi = hi[:i+1]
			return lo, hi
		}
	}
	return lo, nil
}
