// Package ingestsvc implements the aggregator pipeline: admission of
// published events into a bounded queue, a single consumer that enforces
// exactly-once processing through the persistent dedup store, the recent
// events cache, live tail fan-out, and stats/health snapshots.
//
// Publishers deliver at least once; the consumer drops duplicates by
// (topic, event_id) so every unique event is processed exactly once.
package ingestsvc
