package config

import (
	"os"
	"strconv"
)

// FromEnv overlays PSLA_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	overlayInt(&cfg.QueueCapacity, "PSLA_QUEUE_CAPACITY")
	overlayInt(&cfg.EnqueueTimeoutMs, "PSLA_ENQUEUE_TIMEOUT_MS")
	overlayInt(&cfg.CacheCapacity, "PSLA_CACHE_CAPACITY")
	overlayInt(&cfg.MaxBatch, "PSLA_MAX_BATCH")
	overlayInt(&cfg.DefaultQueryLimit, "PSLA_DEFAULT_QUERY_LIMIT")
	overlayInt(&cfg.MaxQueryLimit, "PSLA_MAX_QUERY_LIMIT")
}

func overlayInt(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
