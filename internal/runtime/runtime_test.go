package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeInterval, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Dedup() == nil {
		t.Fatalf("dedup store must be wired")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.QueueCapacity = -1
	if _, err := Open(Options{DataDir: t.TempDir(), Config: cfg}); err == nil {
		t.Fatalf("invalid config should fail open")
	}
}

func TestDedupReachableThroughRuntime(t *testing.T) {
	rt, err := Open(Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeInterval, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	isNew, err := rt.Dedup().CheckAndMark(context.Background(), "orders", "evt-1")
	if err != nil || !isNew {
		t.Fatalf("check and mark = %v, %v; want true, nil", isNew, err)
	}
}
