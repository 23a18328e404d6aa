package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	depth := 3.0
	m := New(Options{
		QueueDepth: func() float64 { return depth },
		CacheSize:  func() float64 { return 7 },
	})

	m.EventsReceived.Inc()
	m.EventsReceived.Inc()
	m.DuplicatesDropped.Inc()
	m.PublishRejected.WithLabelValues("capacity").Inc()

	if got := testutil.ToFloat64(m.EventsReceived); got != 2 {
		t.Fatalf("events received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DuplicatesDropped); got != 1 {
		t.Fatalf("duplicates dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth); got != 3 {
		t.Fatalf("queue depth = %v, want 3", got)
	}
}

func TestStoreHookObservations(t *testing.T) {
	m := New(Options{})
	m.ObserveRead(time.Millisecond, 128)
	m.ObserveBatchCommit(2*time.Millisecond, 256)
	m.ObserveBatchCommit(time.Millisecond, 64)

	if got := testutil.ToFloat64(m.storeCommitBytes); got != 320 {
		t.Fatalf("commit bytes = %v, want 320", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(Options{})
	m.EventsProcessed.Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "psla_events_processed_total 1") {
		t.Fatalf("metrics output missing processed counter:\n%s", body)
	}
}

func TestTwoInstancesCoexist(t *testing.T) {
	a := New(Options{})
	b := New(Options{})
	a.EventsReceived.Inc()
	if got := testutil.ToFloat64(b.EventsReceived); got != 0 {
		t.Fatalf("instances must not share state, got %v", got)
	}
}
