package serverrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
)

func TestGetenvDefault(t *testing.T) {
	t.Setenv("PSLA_TEST_VAR", "env_value")
	if got := getenvDefault("PSLA_TEST_VAR", "default"); got != "env_value" {
		t.Fatalf("got %q, want env value", got)
	}
	_ = os.Unsetenv("PSLA_TEST_VAR_UNSET")
	if got := getenvDefault("PSLA_TEST_VAR_UNSET", "default"); got != "default" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestDataDirFallback(t *testing.T) {
	opts := Options{}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.DataDir == "" {
		t.Fatalf("data dir must not be empty after fallback")
	}
	if storeDir := filepath.Join(opts.DataDir, "store"); filepath.Base(storeDir) != "store" {
		t.Fatalf("store subdirectory layout broken: %s", storeDir)
	}
}

// TestRunIntegration starts the full server and cancels it shortly after.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	opts := Options{
		DataDir:       t.TempDir(),
		HTTPAddr:      "127.0.0.1:0",
		Fsync:         pebblestore.FsyncModeNever,
		FsyncInterval: time.Millisecond,
		Config:        cfgpkg.Default(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := Run(ctx, opts)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}
}
