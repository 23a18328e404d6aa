package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	QueueCapacity     int `json:"queueCapacity"`
	EnqueueTimeoutMs  int `json:"enqueueTimeoutMs"`
	CacheCapacity     int `json:"cacheCapacity"`
	MaxBatch          int `json:"maxBatch"`
	DefaultQueryLimit int `json:"defaultQueryLimit"`
	MaxQueryLimit     int `json:"maxQueryLimit"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		QueueCapacity:     10000,
		EnqueueTimeoutMs:  5000,
		CacheCapacity:     10000,
		MaxBatch:          1000,
		DefaultQueryLimit: 100,
		MaxQueryLimit:     1000,
	}
}

// EnqueueTimeout returns the enqueue timeout as a duration.
func (c Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.EnqueueTimeoutMs) * time.Millisecond
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queueCapacity must be positive, got %d", c.QueueCapacity)
	}
	if c.EnqueueTimeoutMs <= 0 {
		return fmt.Errorf("enqueueTimeoutMs must be positive, got %d", c.EnqueueTimeoutMs)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cacheCapacity must be positive, got %d", c.CacheCapacity)
	}
	if c.MaxBatch <= 0 {
		return fmt.Errorf("maxBatch must be positive, got %d", c.MaxBatch)
	}
	if c.DefaultQueryLimit <= 0 || c.MaxQueryLimit < c.DefaultQueryLimit {
		return fmt.Errorf("query limits invalid: default %d, max %d", c.DefaultQueryLimit, c.MaxQueryLimit)
	}
	return nil
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
