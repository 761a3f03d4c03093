// Package metrics instruments interview processing with Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interview outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Script sources.
const (
	SourceDesigner = "designer"
	SourceFallback = "fallback"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	interviews     *prometheus.CounterVec
	scripts        *prometheus.CounterVec
	safety         *prometheus.CounterVec
	redirects      prometheus.Counter
	syncFailures   prometheus.Counter
	heuristicLinks prometheus.Counter
	duration       prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		interviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewlab_interviews_total",
			Help: "Interview transcripts handled, by outcome.",
		}, []string{"outcome"}),
		scripts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewlab_scripts_total",
			Help: "Script versions stored, by source.",
		}, []string{"source"}),
		safety: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewlab_script_safety_total",
			Help: "Safety guard results, by status.",
		}, []string{"status"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewlab_topic_redirects_total",
			Help: "Script fields rewritten back to the research question.",
		}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewlab_sync_failures_total",
			Help: "Failed prompt pushes to the voice agent.",
		}),
		heuristicLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "interviewlab_heuristic_links_added_total",
			Help: "Heuristic evidence suggestions added to propositions.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "interviewlab_process_duration_seconds",
			Help:    "Wall time of one processing run.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
	for _, c := range []prometheus.Collector{
		m.interviews, m.scripts, m.safety, m.redirects, m.syncFailures, m.heuristicLinks, m.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Interview counts one handled transcript.
func (m *Metrics) Interview(outcome string) {
	if m == nil {
		return
	}
	m.interviews.WithLabelValues(outcome).Inc()
}

// Script counts one stored script version.
func (m *Metrics) Script(source, safetyStatus string, redirects int) {
	if m == nil {
		return
	}
	m.scripts.WithLabelValues(source).Inc()
	m.safety.WithLabelValues(safetyStatus).Inc()
	m.redirects.Add(float64(redirects))
}

// SyncFailure counts one failed prompt push.
func (m *Metrics) SyncFailure() {
	if m == nil {
		return
	}
	m.syncFailures.Inc()
}

// HeuristicLinks counts added suggestions.
func (m *Metrics) HeuristicLinks(added int) {
	if m == nil || added <= 0 {
		return
	}
	m.heuristicLinks.Add(float64(added))
}

// ObserveRun records the duration of a run that started at start.
func (m *Metrics) ObserveRun(start time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
}
