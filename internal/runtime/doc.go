// Package runtime wires storage, config, and the dedup store into a
// single-node aggregator instance. It exposes Open/Close, basic health
// checks, and accessors used by higher-level services.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeInterval, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	isNew, _ := rt.Dedup().CheckAndMark(context.Background(), "orders", "evt-1")
package runtime
