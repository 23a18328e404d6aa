package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	serverrun "github.com/fzhnf/pub-sub-log-aggregator/internal/cmd/server"
	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
	logpkg "github.com/fzhnf/pub-sub-log-aggregator/pkg/log"
)

func main() {
	// Respect PSLA_LOG_LEVEL for CLI output
	level := os.Getenv("PSLA_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "psla",
		Short: "Pub-sub log aggregator CLI",
		Long:  "psla is a single-binary log aggregator with exactly-once processing. This CLI manages the server and basic operations.",
	}

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newStatsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the aggregator server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			queueCap, _ := cmd.Flags().GetInt("queue-cap")
			cacheCap, _ := cmd.Flags().GetInt("cache-cap")

			mode := pebblestore.FsyncModeInterval
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if queueCap > 0 {
				cfg.QueueCapacity = queueCap
			}
			if cacheCap > 0 {
				cfg.CacheCapacity = cacheCap
			}
			if logLevel != "" {
				_ = os.Setenv("PSLA_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("PSLA_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	startCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	startCmd.Flags().String("http", ":8080", "HTTP listen address")
	startCmd.Flags().String("config", "", "Config file path (JSON)")
	startCmd.Flags().String("fsync", "interval", "Fsync mode: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	startCmd.Flags().String("log-level", os.Getenv("PSLA_LOG_LEVEL"), "Log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", os.Getenv("PSLA_LOG_FORMAT"), "Log format: text|json (default text)")
	startCmd.Flags().Int("queue-cap", 0, "Admission queue capacity (default 10000)")
	startCmd.Flags().Int("cache-cap", 0, "Recent events cache capacity (default 10000)")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

// newPublishCommand builds a test publisher that exercises at-least-once
// delivery: a configurable share of events is sent more than once.
func newPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish synthetic events, redelivering a share of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, _ := cmd.Flags().GetString("topic")
			source, _ := cmd.Flags().GetString("source")
			count, _ := cmd.Flags().GetInt("count")
			dupRate, _ := cmd.Flags().GetFloat64("duplicate-rate")
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			if batchSize <= 0 {
				batchSize = 1
			}

			type wireEvent struct {
				Topic     string         `json:"topic"`
				EventID   string         `json:"event_id"`
				Timestamp string         `json:"timestamp"`
				Source    string         `json:"source"`
				Payload   map[string]any `json:"payload"`
			}
			events := make([]wireEvent, 0, count*2)
			for i := 0; i < count; i++ {
				ev := wireEvent{
					Topic:     topic,
					EventID:   uuid.NewString(),
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Source:    source,
					Payload:   map[string]any{"seq": i, "message": fmt.Sprintf("synthetic event %d", i)},
				}
				events = append(events, ev)
				if rand.Float64() < dupRate {
					events = append(events, ev)
				}
			}

			sent := 0
			for start := 0; start < len(events); start += batchSize {
				end := start + batchSize
				if end > len(events) {
					end = len(events)
				}
				body, err := json.Marshal(map[string]any{"events": events[start:end]})
				if err != nil {
					return err
				}
				resp, err := http.Post(apiURL()+"/v1/publish", "application/json", bytes.NewReader(body))
				if err != nil {
					return err
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusAccepted {
					return fmt.Errorf("publish failed: %s", resp.Status)
				}
				sent += end - start
			}
			fmt.Printf("published %d deliveries (%d unique) to %s\n", sent, count, topic)
			return nil
		},
	}
	cmd.Flags().String("topic", "test", "Topic to publish to")
	cmd.Flags().String("source", "psla-publish", "Source label")
	cmd.Flags().Int("count", 100, "Number of unique events")
	cmd.Flags().Float64("duplicate-rate", 0.2, "Share of events delivered twice")
	cmd.Flags().Int("batch-size", 50, "Events per publish request")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print aggregator stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiURL() + "/v1/stats")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			var stats map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
				return err
			}
			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func apiURL() string {
	if v := os.Getenv("PSLA_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
