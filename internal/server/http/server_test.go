package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/fzhnf/pub-sub-log-aggregator/internal/config"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/metrics"
	"github.com/fzhnf/pub-sub-log-aggregator/internal/runtime"
	ingestsvc "github.com/fzhnf/pub-sub-log-aggregator/internal/services/ingest"
	pebblestore "github.com/fzhnf/pub-sub-log-aggregator/internal/storage/pebble"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.QueueCapacity = 64
	cfg.EnqueueTimeoutMs = 100
	rt, err := runtime.Open(runtime.Options{
		DataDir:       t.TempDir(),
		Fsync:         pebblestore.FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	svc := ingestsvc.New(rt)
	m := metrics.New(metrics.Options{})
	svc.UseMetrics(m)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	ts := httptest.NewServer(New(rt, svc, m).Handler())
	t.Cleanup(func() {
		ts.Close()
		svc.Close()
		_ = rt.Close()
	})
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func waitForCount(t *testing.T, url string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var resp struct {
			Count int `json:"count"`
		}
		if getJSON(t, url, &resp) == http.StatusOK && resp.Count == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event count never reached %d at %s", want, url)
}

func TestPublishAndQuery(t *testing.T) {
	ts := newTestServer(t)

	body := `{"events": [
		{"topic": "orders", "event_id": "e1", "timestamp": "2026-08-29T10:00:01Z", "source": "web", "payload": {"n": 1}},
		{"topic": "orders", "event_id": "e1", "timestamp": "2026-08-29T10:00:01Z", "source": "web", "payload": {"n": 1}}
	]}`
	resp, out := postJSON(t, ts.URL+"/v1/publish", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish status = %d, body %s", resp.StatusCode, out)
	}
	if !strings.Contains(out, `"accepted":2`) {
		t.Fatalf("both deliveries must be admitted: %s", out)
	}

	// Redelivered event collapses to one processed result.
	waitForCount(t, ts.URL+"/v1/events?topic=orders", 1)

	var stats struct {
		Received         uint64  `json:"received"`
		DuplicateDropped uint64  `json:"duplicate_dropped"`
		UniqueProcessed  uint64  `json:"unique_processed"`
		DuplicateRate    float64 `json:"duplicate_rate"`
	}
	if code := getJSON(t, ts.URL+"/v1/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats.Received != 2 || stats.DuplicateDropped != 1 || stats.UniqueProcessed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.DuplicateRate != 0.5 {
		t.Fatalf("duplicate rate = %v, want 0.5", stats.DuplicateRate)
	}
}

func TestPublishBareEvent(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postJSON(t, ts.URL+"/v1/publish",
		`{"topic": "logs", "event_id": "e1", "timestamp": "2026-08-29T10:00:00Z", "source": "cli"}`)
	if resp.StatusCode != http.StatusAccepted || !strings.Contains(out, `"accepted":1`) {
		t.Fatalf("bare event publish = %d, %s", resp.StatusCode, out)
	}
}

func TestPublishRejectsInvalidBatch(t *testing.T) {
	ts := newTestServer(t)

	body := `{"events": [
		{"topic": "orders", "event_id": "good", "timestamp": "2026-08-29T10:00:01Z", "source": "web"},
		{"topic": "orders", "event_id": "", "timestamp": "2026-08-29T10:00:02Z", "source": "web"}
	]}`
	resp, _ := postJSON(t, ts.URL+"/v1/publish", body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid batch status = %d, want 400", resp.StatusCode)
	}

	// Whole-batch rejection admits nothing.
	var stats struct {
		Received uint64 `json:"received"`
	}
	getJSON(t, ts.URL+"/v1/stats", &stats)
	if stats.Received != 0 {
		t.Fatalf("received = %d after rejected batch, want 0", stats.Received)
	}
}

func TestPublishGarbageBody(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := postJSON(t, ts.URL+"/v1/publish", `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("garbage body status = %d, want 400", resp.StatusCode)
	}
}

func TestEventsQueryParams(t *testing.T) {
	ts := newTestServer(t)

	body := `{"events": [
		{"topic": "orders", "event_id": "a", "timestamp": "2026-08-29T10:00:01Z", "source": "web", "payload": {"level": "error"}},
		{"topic": "orders", "event_id": "b", "timestamp": "2026-08-29T10:00:02Z", "source": "web", "payload": {"level": "info"}},
		{"topic": "payments", "event_id": "c", "timestamp": "2026-08-29T10:00:03Z", "source": "web", "payload": {"level": "info"}}
	]}`
	if resp, out := postJSON(t, ts.URL+"/v1/publish", body); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish = %d, %s", resp.StatusCode, out)
	}
	waitForCount(t, ts.URL+"/v1/events", 3)
	waitForCount(t, ts.URL+"/v1/events?topic=orders", 2)
	waitForCount(t, ts.URL+"/v1/events?limit=1", 1)
	waitForCount(t, ts.URL+"/v1/events?filter="+
		"json.level%20%3D%3D%20%22error%22", 1)

	var resp struct {
		Events []struct {
			EventID string `json:"event_id"`
		} `json:"events"`
	}
	getJSON(t, ts.URL+"/v1/events", &resp)
	// Newest event timestamp first.
	if resp.Events[0].EventID != "c" || resp.Events[2].EventID != "a" {
		t.Fatalf("unexpected order: %+v", resp.Events)
	}
}

func TestEventsBadFilter(t *testing.T) {
	ts := newTestServer(t)
	if code := getJSON(t, ts.URL+"/v1/events?filter=%28broken", nil); code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d, want 400", code)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	var h struct {
		Status        string `json:"status"`
		QueueCapacity int    `json:"queue_capacity"`
	}
	if code := getJSON(t, ts.URL+"/v1/healthz", &h); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	if h.Status != "ok" || h.QueueCapacity != 64 {
		t.Fatalf("unexpected health: %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	postJSON(t, ts.URL+"/v1/publish",
		`{"topic": "orders", "event_id": "e1", "timestamp": "2026-08-29T10:00:00Z", "source": "web"}`)
	waitForCount(t, ts.URL+"/v1/events", 1)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), "psla_events_received_total 1") {
		t.Fatalf("metrics missing received counter:\n%s", b)
	}
}

func TestTailSSE(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/events/tail?topic=orders", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req = req.WithContext(ctx)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open tail: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	postJSON(t, ts.URL+"/v1/publish",
		`{"topic": "orders", "event_id": "live", "timestamp": "2026-08-29T10:00:00Z", "source": "web"}`)

	buf := make([]byte, 4096)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if !strings.Contains(string(buf[:n]), `"event_id":"live"`) {
		t.Fatalf("tail frame missing event: %s", buf[:n])
	}
}
