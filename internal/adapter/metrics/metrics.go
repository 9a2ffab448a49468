// Package metrics exposes Prometheus collectors for sync and payment
// event processing.
package metrics

import (
	"strconv"
	"time"

	"accounting-sync/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "accounting_sync"

// Metrics implements ports.SyncMetrics and ports.PaymentMetrics.
type Metrics struct {
	syncOperations   *prometheus.CounterVec
	paymentsReceived *prometheus.CounterVec
	paymentVolume    *prometheus.CounterVec
	paymentFailures  *prometheus.CounterVec
	analyticsEvents  *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Sync operations processed, by entity, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		paymentsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "received_total",
			Help:      "Successful payment events, by currency.",
		}, []string{"currency"}),
		paymentVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "received_amount_total",
			Help:      "Sum of successful payment amounts, by currency.",
		}, []string{"currency"}),
		paymentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "failed_total",
			Help:      "Failed payment events, by provider.",
		}, []string{"provider"}),
		analyticsEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "analytics_events_total",
			Help:      "Payment analytics events, by provider and status.",
		}, []string{"provider", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	reg.MustRegister(
		m.syncOperations,
		m.paymentsReceived,
		m.paymentVolume,
		m.paymentFailures,
		m.analyticsEvents,
		m.httpDuration,
	)
	return m
}

// ObserveOperation counts one applied sync operation.
func (m *Metrics) ObserveOperation(entity domain.EntityType, op domain.OperationType, outcome string) {
	m.syncOperations.WithLabelValues(string(entity), string(op), outcome).Inc()
}

// RecordReceived counts a successful payment. Non-positive amounts only bump the count.
func (m *Metrics) RecordReceived(currency string, amount float64) {
	m.paymentsReceived.WithLabelValues(currency).Inc()
	if amount > 0 {
		m.paymentVolume.WithLabelValues(currency).Add(amount)
	}
}

// RecordFailure counts a failed payment.
func (m *Metrics) RecordFailure(provider string) {
	m.paymentFailures.WithLabelValues(provider).Inc()
}

// RecordAnalytics counts an analytics event.
func (m *Metrics) RecordAnalytics(provider, status string) {
	m.analyticsEvents.WithLabelValues(provider, status).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
