package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/dedup"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Metrics       pebblestore.MetricsHook
	Logger        logpkg.Logger
}

// Runtime wires storage, config, and the dedup store for a single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	store  *dedup.Store
	config cfgpkg.Config
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().WithComponent("dedup")
	}
	return &Runtime{
		db:     db,
		store:  dedup.NewStore(db, logger),
		config: opts.Config,
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage reachability check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Dedup returns the persistent deduplication store.
func (r *Runtime) Dedup() *dedup.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
