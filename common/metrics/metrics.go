// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scribe"

// Metrics groups the collectors. A nil *Metrics records nothing, so
// components and tests can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	documentsIngested *prometheus.CounterVec
	ingestFailures    *prometheus.CounterVec
	syncDuration      *prometheus.HistogramVec
	storiesCreated    *prometheus.CounterVec
	storiesPublished  *prometheus.CounterVec
	externalCalls     *prometheus.HistogramVec
	queryResults      prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents written to the embedding index.",
		}, []string{"source_type"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Source items skipped during ingestion.",
		}, []string{"source_type"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of ingestion batches.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"source_type"}),
		storiesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stories_created_total",
			Help:      "Draft stories persisted.",
		}, []string{"source"}),
		storiesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stories_published_total",
			Help:      "Publish attempts by outcome.",
		}, []string{"outcome"}),
		externalCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      "Latency of calls to trackers, wikis and models.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation", "outcome"}),
		queryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Documents returned per retrieval query.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIngested,
		m.ingestFailures,
		m.syncDuration,
		m.storiesCreated,
		m.storiesPublished,
		m.externalCalls,
		m.queryResults,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSync(sourceType string, succeeded, failed int, took time.Duration) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(sourceType).Add(float64(succeeded))
	m.ingestFailures.WithLabelValues(sourceType).Add(float64(failed))
	m.syncDuration.WithLabelValues(sourceType).Observe(took.Seconds())
}

func (m *Metrics) StoryCreated(source string) {
	if m == nil {
		return
	}
	m.storiesCreated.WithLabelValues(source).Inc()
}

func (m *Metrics) StoryPublished(outcome string) {
	if m == nil {
		return
	}
	m.storiesPublished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExternal(service, operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.externalCalls.WithLabelValues(service, operation, outcome).Observe(took.Seconds())
}

func (m *Metrics) ObserveQuery(results int) {
	if m == nil {
		return
	}
	m.queryResults.Observe(float64(results))
}
