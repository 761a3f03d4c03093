package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.Interview(OutcomeProcessed)
	m.Interview(OutcomeProcessed)
	m.Interview(OutcomeDuplicate)
	m.Script(SourceFallback, "sanitized", 2)
	m.SyncFailure()
	m.HeuristicLinks(3)
	m.HeuristicLinks(0)
	m.ObserveRun(time.Now())

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"processed", m.interviews.WithLabelValues(OutcomeProcessed), 2},
		{"duplicate", m.interviews.WithLabelValues(OutcomeDuplicate), 1},
		{"fallback scripts", m.scripts.WithLabelValues(SourceFallback), 1},
		{"sanitized", m.safety.WithLabelValues("sanitized"), 1},
		{"redirects", m.redirects, 2},
		{"sync failures", m.syncFailures, 1},
		{"heuristic links", m.heuristicLinks, 3},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Interview(OutcomeFailed)
	m.Script(SourceDesigner, "ok", 0)
	m.SyncFailure()
	m.HeuristicLinks(1)
	m.ObserveRun(time.Now())
}
