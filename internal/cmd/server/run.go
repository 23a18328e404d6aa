package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/metrics"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	httpserver "github.com/fzhnf/pub-sub-log-aggregator/internal/server/http"
	ingestsvc "github.com/fzhnf/pub-sub-log-aggregator/internal/services/ingest"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the aggregator and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context; layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")

	// Build process-wide logger using env/ApplyConfig; defaults: level=info, format=text
	cfg := &logpkg.Config{
		Level:  getenvDefault("PSLA_LOG_LEVEL", "info"),
		Format: getenvDefault("PSLA_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	// Gauges are read at scrape time, so they can bind to the service after
	// the metrics instance is built.
	var svcRef *ingestsvc.Service
	m := metrics.New(metrics.Options{
		QueueDepth: func() float64 {
			if svcRef == nil {
				return 0
			}
			return float64(svcRef.QueueDepth())
		},
		CacheSize: func() float64 {
			if svcRef == nil {
				return 0
			}
			return float64(svcRef.CacheSize())
		},
	})
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Metrics:       m,
		Logger:        procLogger.WithComponent("dedup"),
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting aggregator",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
		logpkg.Int("queue_capacity", opts.Config.QueueCapacity),
		logpkg.Int("cache_capacity", opts.Config.CacheCapacity),
	)

	svc := ingestsvc.NewWithLogger(rt, procLogger.WithComponent("ingest"))
	svc.UseMetrics(m)
	svcRef = svc
	if err := svc.Start(sctx); err != nil {
		return err
	}

	hsrv := httpserver.New(rt, svc, m)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Shutdown order: stop accepting, drain accepted events, then close storage.
	hsrv.Close()
	wg.Wait()
	svc.Close()
	procLogger.Info("aggregator stopped")
	return nil
}
