// Package dedup implements the persistent deduplication store: a
// transactional index over (topic, event_id), a durable payload table, and
// durable counters, all on the Pebble wrapper.
//
// Every exposed mutation is individually atomic: the store serializes
// read-modify-write sequences under its own mutex and applies each as a single
// WAL-backed batch commit. The mutex is the store's transaction boundary:
// the store exclusively owns its keyspace, so check-then-insert under that
// lock is equivalent to a unique-constrained insert.
//
// The load-bearing guarantee is that once CheckAndMark reports a key as new,
// that fact survives process restart. Durability is group-commit (see
// pebblestore FsyncModeInterval): restart-safe, not power-loss-safe within
// the commit window.
//
// A dedup index row may transiently exist without its payload row if the
// process crashes between CheckAndMark and PersistPayload; RecoverOrphans
// repairs that window at startup by deleting the index row so the producer's
// at-least-once retry reprocesses the event.
package dedup
