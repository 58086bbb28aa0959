// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Curve generation metrics
	CurvesGenerated    *prometheus.CounterVec
	CurveFailures      *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	UtilizationsSolved prometheus.Counter

	// Batch metrics
	BatchRunsTotal   *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	RecordsPublished *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Server metrics
	HTTPRequests     *prometheus.CounterVec
	ProgressClients  prometheus.Gauge
	ProgressMessages prometheus.Counter

	// Health metrics
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg creates unregistered metrics, which suits tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "kelly_curve_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		CurvesGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "generated_total",
			Help:      "Total number of curve requests by status",
		}, []string{"status"}),
		CurveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "failures_total",
			Help:      "Total number of failed curve requests by failure kind",
		}, []string{"kind"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each curve generation stage in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120},
		}, []string{"stage"}),
		UtilizationsSolved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "curve",
			Name:      "utilizations_solved_total",
			Help:      "Total number of boundary premiums solved",
		}),

		BatchRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by status",
		}, []string{"status"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RecordsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "records_published_total",
			Help:      "Total number of curve records published by result",
		}, []string{"result"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ProgressClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "progress_clients",
			Help:      "Number of connected progress websocket clients",
		}),
		ProgressMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "progress_messages_total",
			Help:      "Total number of progress events broadcast",
		}),

		LastSuccessfulBatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last batch without failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStage records the duration of a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCurve records a finished curve request. kind is empty on success.
func (m *Metrics) RecordCurve(kind string, utilizations int) {
	if m == nil {
		return
	}
	if kind == "" {
		m.CurvesGenerated.WithLabelValues("ok").Inc()
		m.UtilizationsSolved.Add(float64(utilizations))
		return
	}
	m.CurvesGenerated.WithLabelValues("error").Inc()
	m.CurveFailures.WithLabelValues(kind).Inc()
}

// RecordBatch records a batch run.
func (m *Metrics) RecordBatch(failed int, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed > 0 {
		status = "partial"
	} else {
		m.LastSuccessfulBatch.SetToCurrentTime()
	}
	m.BatchRunsTotal.WithLabelValues(status).Inc()
	m.BatchDuration.Observe(d.Seconds())
}

// RecordPublish records a publish attempt.
func (m *Metrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RecordsPublished.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTP records a served HTTP request.
func (m *Metrics) RecordHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, http.StatusText(code)).Inc()
}
