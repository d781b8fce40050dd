// Package metrics instruments the sync, cache, and agent tiers with
// Prometheus metrics, registered through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this module defines. New
// registers them in the calling process's Prometheus default registry; the
// batch-sync command builds it once per run and records against it.
type Metrics struct {
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	JiraAPICalls    *prometheus.CounterVec
	JiraAPIErrors   *prometheus.CounterVec
	SyncDuration    *prometheus.HistogramVec
	SyncIssuesTotal *prometheus.CounterVec
	SyncChunksTotal *prometheus.CounterVec
	BatchWorkersInFlight prometheus.Gauge
	AgentToolCalls  *prometheus.CounterVec
	AgentIterations *prometheus.HistogramVec
}

// New creates and registers every collector under namespace. namespace
// empty defaults to "jirasync".
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "jirasync"
	}

	return &Metrics{
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cache_hits_total", Help: "Request cache hits, by tenant."},
			[]string{"tenant_id"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "cache_misses_total", Help: "Request cache misses, by tenant."},
			[]string{"tenant_id"},
		),
		JiraAPICalls: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "jira_api_calls_total", Help: "Jira REST calls issued, by tenant and endpoint."},
			[]string{"tenant_id", "endpoint"},
		),
		JiraAPIErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "jira_api_errors_total", Help: "Jira REST calls that returned an error, by tenant and classification."},
			[]string{"tenant_id", "error_type"},
		),
		SyncDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Wall-clock duration of one tenant's sync run.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tenant_id", "outcome"},
		),
		SyncIssuesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "sync_issues_total", Help: "Issues processed by completed sync runs, by tenant."},
			[]string{"tenant_id"},
		),
		SyncChunksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "sync_chunks_total", Help: "Chunks written to the vector store by completed sync runs, by tenant."},
			[]string{"tenant_id"},
		),
		BatchWorkersInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "batch_workers_in_flight", Help: "Orchestrator worker goroutines currently running a tenant sync."},
		),
		AgentToolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "agent_tool_calls_total", Help: "Agent tool invocations, by tool name and outcome."},
			[]string{"tool", "outcome"},
		),
		AgentIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_loop_iterations",
				Help:      "Number of model-call iterations one agent run took.",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"outcome"},
		),
	}
}

// RecordToolTrace records outcome counters for a batch of tool-usage
// trace entries produced by one agent.Loop run.
func (m *Metrics) RecordToolTrace(toolNames []string, errored []bool) {
	for i, name := range toolNames {
		outcome := "ok"
		if i < len(errored) && errored[i] {
			outcome = "error"
		}
		m.AgentToolCalls.WithLabelValues(name, outcome).Inc()
	}
}
