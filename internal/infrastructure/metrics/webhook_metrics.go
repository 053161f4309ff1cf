package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook delivery metrics
var (
	// Delivery outcome counters
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "webhook_deliveries_total",
			Help:      "Total number of webhook delivery attempts by outcome",
		},
		[]string{"event", "status"},
	)

	// Delivery duration histogram
	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Webhook delivery duration in seconds, including retries",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"event"},
	)

	// Retry counters
	WebhookRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "values",
			Subsystem: "articulator_api",
			Name:      "webhook_retries_total",
			Help:      "Total number of webhook delivery retries",
		},
		[]string{"event"},
	)
)

// RecordWebhookDelivery records a finished delivery attempt chain.
func RecordWebhookDelivery(event, status string, durationSec float64) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
	WebhookDeliveryDuration.WithLabelValues(event).Observe(durationSec)
}

// RecordWebhookRetry records a single delivery retry.
func RecordWebhookRetry(event string) {
	WebhookRetriesTotal.WithLabelValues(event).Inc()
}
