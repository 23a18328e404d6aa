// Package log provides the aggregator's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by Go's standard
// library slog via a custom handler that routes records through a
// formatter/outputs pipeline, so the slog ecosystem stays usable while output
// remains consistent across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("ingest"))
//	l.Info("consumer started", log.Int("queue_cap", 10000))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level + json/text
// format). RedirectStdLog routes standard-library log output (Pebble logs
// through it) into a Logger instance.
package log
