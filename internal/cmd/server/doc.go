// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the aggregator runtime with its HTTP server, handling lifecycle and
// shutdown ordering: stop admission, drain the consumer, then close storage.
//
// Example:
//
//	opts := serverrun.Options{DataDir: "./data", HTTPAddr: ":8080", Fsync: pebblestore.FsyncModeInterval, Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
