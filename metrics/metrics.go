// Package metrics holds the Prometheus collectors of the export service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "themis_export"

var (
	// JobsCreated counts accepted jobs by origin ("api" or "discovery").
	JobsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_created_total",
		Help:      "Publication export jobs accepted, by origin.",
	}, []string{"origin"})

	// JobsExecuted counts finished executions by final status.
	JobsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_executed_total",
		Help:      "Job executions by final status.",
	}, []string{"status"})

	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_retries_total",
		Help:      "Failed jobs re-executed by the retry sweep.",
	})

	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Wall time of one job execution.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	JobRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "job_running",
		Help:      "1 while a job is executing in this process.",
	})

	TriplesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "triples_exported_total",
		Help:      "Triples written to export files.",
	})

	FilesExported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_exported_total",
		Help:      "Export files finalized.",
	})

	// StoreRequests counts SPARQL requests by operation and outcome.
	StoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_requests_total",
		Help:      "SPARQL requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	StoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_retries_total",
		Help:      "SPARQL requests retried after a transient failure.",
	}, []string{"operation"})

	PublicationRequestsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publication_requests_discovered_total",
		Help:      "Publication requests found by polling that had no job yet.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
