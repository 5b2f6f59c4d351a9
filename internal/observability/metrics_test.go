package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics("taskboard_test")
	m.RecordRequest("/tasks", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/tasks", "GET", 200, 5*time.Millisecond)
	m.RecordError("/tasks/:id", "GET", "NOT_FOUND")
	m.RecordScopeResolve("cache")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("/tasks", "GET", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("/tasks/:id", "GET", "NOT_FOUND")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.scopeResolves.WithLabelValues("cache")); got != 1 {
		t.Errorf("scope resolves = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordScopeResolve("roster")
}
