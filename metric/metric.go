// Package metric exposes Prometheus instrumentation for the triage
// pipeline. Core packages stay metric-free; the HTTP API and inbox watcher
// increment these counters at their boundaries.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters, registered on one registry so
// tests can use isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	IntakesTotal     prometheus.Counter
	IntakeFailures   prometheus.Counter
	DraftsExtracted  prometheus.Counter
	MatchesDegraded  prometheus.Counter
	CommitsByOutcome *prometheus.CounterVec
	InboxFilesSeen   prometheus.Counter
}

// New creates a metric set on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		IntakesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_intakes_total",
			Help: "Number of note intakes processed.",
		}),
		IntakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_intake_failures_total",
			Help: "Number of intakes that failed at extraction.",
		}),
		DraftsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_drafts_extracted_total",
			Help: "Number of task drafts extracted from notes.",
		}),
		MatchesDegraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_matches_degraded_total",
			Help: "Number of similarity checks that degraded to no candidates.",
		}),
		CommitsByOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_commits_total",
			Help: "Number of committed review items by outcome.",
		}, []string{"outcome"}),
		InboxFilesSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_inbox_files_total",
			Help: "Number of note files picked up from the inbox directory.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
