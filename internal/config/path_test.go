package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	got := DefaultDataDir()
	if filepath.Base(got) != "psla" {
		t.Fatalf("xdg dir = %q, want psla leaf", got)
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	got := DefaultDataDir()
	if got == "" {
		t.Fatalf("data dir must not be empty")
	}
	if !strings.Contains(strings.ToLower(got), "psla") && got != "./data" {
		t.Fatalf("data dir %q should be scoped to the application", got)
	}
}
