package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Articulator-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Articulation turn counter
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "turns_total",
			Help:      "Total articulation turns processed",
		},
		[]string{"status"},
	)

	// Function call counter
	FunctionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "function_calls_total",
			Help:      "Total model function calls dispatched",
		},
		[]string{"function_name", "status"},
	)

	// Upstream completion duration histogram
	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "completion_duration_seconds",
			Help:      "Upstream chat completion duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// Submitted cards counter
	CardsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "cards_submitted_total",
			Help:      "Total values cards submitted",
		},
	)

	// Embedding queue depth gauge
	EmbeddingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "embedding_queue_depth",
			Help:      "Cards awaiting embedding",
		},
	)

	// Embedding jobs counter
	EmbeddingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "embedding_jobs_total",
			Help:      "Total embedding jobs processed",
		},
		[]string{"status"},
	)

	// DB query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"query_type"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordTurn records a completed articulation turn
func RecordTurn(status string) {
	TurnsTotal.WithLabelValues(status).Inc()
}

// RecordFunctionCall records a dispatched model function call
func RecordFunctionCall(functionName, status string) {
	FunctionCallsTotal.WithLabelValues(functionName, status).Inc()
}

// RecordCompletion records an upstream completion request
func RecordCompletion(kind string, durationSec float64) {
	CompletionDuration.WithLabelValues(kind).Observe(durationSec)
}

// RecordCardSubmitted records a submitted values card
func RecordCardSubmitted() {
	CardsSubmittedTotal.Inc()
}

// SetEmbeddingQueueDepth sets the current embedding queue depth
func SetEmbeddingQueueDepth(depth int64) {
	EmbeddingQueueDepth.Set(float64(depth))
}

// RecordEmbeddingJob records an embedding job execution
func RecordEmbeddingJob(status string) {
	EmbeddingJobsTotal.WithLabelValues(status).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(queryType string, durationSec float64) {
	DBQueryDuration.WithLabelValues(queryType).Observe(durationSec)
}
