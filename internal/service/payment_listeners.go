package service

import (
	"context"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/rs/zerolog"
)

// PaymentListeners are the local consumers of normalized payment events.
type PaymentListeners struct {
	metrics ports.PaymentMetrics
	log     zerolog.Logger
}

// RegisterPaymentListeners subscribes the revenue tracker, risk monitor and
// analytics recorder to their bus channels.
func RegisterPaymentListeners(bus ports.EventBus, metrics ports.PaymentMetrics, log zerolog.Logger) *PaymentListeners {
	l := &PaymentListeners{metrics: metrics, log: log}
	bus.Subscribe(domain.ChannelPaymentReceived, l.TrackRevenue)
	bus.Subscribe(domain.ChannelPaymentFailed, l.MonitorRisk)
	bus.Subscribe(domain.ChannelPaymentAnalytics, l.RecordAnalytics)
	return l
}

// TrackRevenue records a received subscription payment.
func (l *PaymentListeners) TrackRevenue(_ context.Context, evt domain.NormalizedPaymentEvent) error {
	currency := evt.Currency
	if currency == "" {
		currency = "UNKNOWN"
	}
	l.metrics.RecordReceived(currency, evt.Amount)

	l.log.Info().
		Str("transaction_id", evt.TransactionID).
		Str("customer_id", evt.CustomerID).
		Str("plan_id", evt.PlanID).
		Float64("amount", evt.Amount).
		Str("currency", currency).
		Msg("payment received")
	return nil
}

// MonitorRisk records a failed subscription payment.
func (l *PaymentListeners) MonitorRisk(_ context.Context, evt domain.NormalizedPaymentEvent) error {
	l.metrics.RecordFailure(orUnknown(evt.Provider))

	l.log.Warn().
		Str("transaction_id", evt.TransactionID).
		Str("customer_id", evt.CustomerID).
		Str("provider", evt.Provider).
		Str("status", evt.Status).
		Msg("payment failed")
	return nil
}

// RecordAnalytics counts analytics events by provider and status.
func (l *PaymentListeners) RecordAnalytics(_ context.Context, evt domain.NormalizedPaymentEvent) error {
	l.metrics.RecordAnalytics(orUnknown(evt.Provider), orUnknown(evt.Status))
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
