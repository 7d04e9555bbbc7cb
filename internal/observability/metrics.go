package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters for the ingestion pipeline.
type Metrics struct {
	// IngestRuns counts orchestrator runs, labels: source={bulletin,weather},
	// outcome={success,error}.
	IngestRuns *prometheus.CounterVec

	// TranslationCache counts cache lookups, label: result={hit,miss}.
	TranslationCache *prometheus.CounterVec

	// DashboardBuilds counts read-path assemblies, label: cache={hit,miss}.
	DashboardBuilds *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.IngestRuns, m.TranslationCache, m.DashboardBuilds)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "montsignal",
			Name:      "ingest_runs_total",
			Help:      "Ingestion orchestrator runs by source and outcome.",
		}, []string{"source", "outcome"}),
		TranslationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "montsignal",
			Name:      "translation_cache_total",
			Help:      "Translation cache lookups by result.",
		}, []string{"result"}),
		DashboardBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "montsignal",
			Name:      "dashboard_builds_total",
			Help:      "Dashboard read-path assemblies by response-cache result.",
		}, []string{"cache"}),
	}
}
