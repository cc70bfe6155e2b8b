// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Extraction metrics
	DocumentsExtracted *prometheus.CounterVec
	DocumentsSkipped   *prometheus.CounterVec
	RowsExtracted      *prometheus.CounterVec

	// Aggregation metrics
	AggregatesComputed prometheus.Counter
	EmptyAggregates    prometheus.Counter

	// Assembly metrics
	FeatureRowsAssembled *prometheus.CounterVec
	ScratchedDropped     prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Fetch metrics
	DocumentsFetched *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "keiba_feature_lab"
	}

	return &Metrics{
		DocumentsExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "documents_total",
			Help:      "Total number of documents successfully extracted by kind",
		}, []string{"kind"}),
		DocumentsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "documents_skipped_total",
			Help:      "Total number of documents skipped due to extraction failures by kind",
		}, []string{"kind"}),
		RowsExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "rows_total",
			Help:      "Total number of canonical rows extracted by kind",
		}, []string{"kind"}),

		AggregatesComputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "computed_total",
			Help:      "Total number of window aggregates computed",
		}),
		EmptyAggregates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "empty_total",
			Help:      "Total number of aggregates with zero eligible history rows",
		}),

		FeatureRowsAssembled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assemble",
			Name:      "feature_rows_total",
			Help:      "Total number of feature rows assembled by mode",
		}, []string{"mode"}),
		ScratchedDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assemble",
			Name:      "scratched_dropped_total",
			Help:      "Total number of population entries dropped for missing result rows",
		}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by phase and status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),

		DocumentsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "documents_total",
			Help:      "Total number of documents fetched by kind",
		}, []string{"kind"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "errors_total",
			Help:      "Total number of fetch errors by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordDocumentExtracted records a successful document extraction.
func (m *Metrics) RecordDocumentExtracted(kind string, rows int) {
	m.DocumentsExtracted.WithLabelValues(kind).Inc()
	m.RowsExtracted.WithLabelValues(kind).Add(float64(rows))
}

// RecordDocumentSkipped records a skipped document.
func (m *Metrics) RecordDocumentSkipped(kind string) {
	m.DocumentsSkipped.WithLabelValues(kind).Inc()
}

// RecordAggregate records a computed aggregate; empty marks zero eligible rows.
func (m *Metrics) RecordAggregate(empty bool) {
	m.AggregatesComputed.Inc()
	if empty {
		m.EmptyAggregates.Inc()
	}
}

// RecordFeatureRows records assembled feature rows for a mode.
func (m *Metrics) RecordFeatureRows(mode string, n int) {
	m.FeatureRowsAssembled.WithLabelValues(mode).Add(float64(n))
}

// RecordScratched records a population entry dropped for a missing result row.
func (m *Metrics) RecordScratched() {
	m.ScratchedDropped.Inc()
}

// RecordPipelineRun records a pipeline run.
func (m *Metrics) RecordPipelineRun(phase, status string, duration time.Duration) {
	m.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	m.PipelineDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordFetch records a fetched document or a fetch error.
func (m *Metrics) RecordFetch(kind string, err error) {
	if err != nil {
		m.FetchErrors.WithLabelValues(kind).Inc()
		return
	}
	m.DocumentsFetched.WithLabelValues(kind).Inc()
}
