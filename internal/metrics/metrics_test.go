package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SetPending(3)
	m.SetOnline(true)
	m.SetSyncing(true)
	m.IncEnqueued()
	m.ObserveDelivery(time.Millisecond, "")
	m.ObserveSweep(OutcomeCompleted, time.Second)
	m.ObserveCompaction(2, nil)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestMetricsRecordValues(t *testing.T) {
	m := New()
	m.SetPending(4)
	m.SetOnline(true)
	m.ObserveDelivery(10*time.Millisecond, "")
	m.ObserveDelivery(10*time.Millisecond, "")
	m.ObserveDelivery(10*time.Millisecond, "transport")
	m.ObserveSweep(OutcomeAborted, time.Second)
	m.ObserveSweep(OutcomeSkipped, 0)
	m.ObserveCompaction(2, nil)
	m.ObserveCompaction(0, errors.New("locked"))

	if got := testutil.ToFloat64(m.pendingEntries); got != 4 {
		t.Fatalf("pending = %v", got)
	}
	if got := testutil.ToFloat64(m.online); got != 1 {
		t.Fatalf("online = %v", got)
	}
	if got := testutil.ToFloat64(m.deliveredTotal); got != 2 {
		t.Fatalf("delivered = %v", got)
	}
	if got := testutil.ToFloat64(m.deliveryFailures.WithLabelValues("transport")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
	if got := testutil.ToFloat64(m.sweepsTotal.WithLabelValues(OutcomeSkipped)); got != 1 {
		t.Fatalf("skipped sweeps = %v", got)
	}
	if got := testutil.ToFloat64(m.compactedTotal); got != 2 {
		t.Fatalf("compacted = %v", got)
	}
	if got := testutil.ToFloat64(m.compactionFailure); got != 1 {
		t.Fatalf("compaction failures = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SetPending(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "thermolog_pending_entries 2") {
		t.Fatalf("metrics output missing pending gauge:\n%s", rec.Body.String())
	}
}
