// Package pebblestore wraps Pebble with an fsync policy, batches, iterators,
// and a minimal metrics hook. It is the durability layer under the dedup
// store: every multi-key update commits through a single WAL-backed batch.
//
// Durability trade-off: the default FsyncModeInterval coalesces WAL syncs in a
// small group-commit window. A committed write survives a process crash and
// restart (the WAL is replayed on open) but the most recent commit window can
// be lost on power failure. That matches the aggregator's stated guarantee,
// which is restart-survival, not power-loss-survival.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
