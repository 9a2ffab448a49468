package domain

import (
	"time"
)

// Local event-bus channels fed by the payment event normalizer.
const (
	ChannelPaymentReceived  = "finance.payment.received"
	ChannelPaymentFailed    = "subscription.payment.failed"
	ChannelPaymentAnalytics = "payment.analytics"
)

// NormalizedPaymentEvent is the canonical shape of every inbound payment
// message, whatever naming convention its producer used.
type NormalizedPaymentEvent struct {
	EventType      string         `json:"eventType"`
	TransactionID  string         `json:"transactionId,omitempty"`
	CustomerID     string         `json:"customerId,omitempty"`
	PlanID         string         `json:"planId,omitempty"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency,omitempty"`
	PaymentMethod  string         `json:"paymentMethod,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Status         string         `json:"status,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Topic          string         `json:"topic"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// Subscription payment topics produced for the payment-service contract.
const (
	TopicSubscriptionPaymentRequest   = "subscription.payment.request"
	TopicSubscriptionPaymentInitiated = "subscription.payment.initiated"
	TopicSubscriptionPaymentSuccess   = "subscription.payment.success"
	TopicSubscriptionPaymentFailed    = "subscription.payment.failed"
	TopicSubscriptionPaymentPending   = "subscription.payment.pending"
)

// EnvelopeVersion is the schema version stamped on every produced envelope.
const EnvelopeVersion = "1.0"

// EventEnvelope wraps every produced subscription payment event.
type EventEnvelope struct {
	EventType string    `json:"eventType"`
	EventID   string    `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	Payload   any       `json:"payload"`
}

// SubscriptionPayment is the payload of produced subscription payment events.
type SubscriptionPayment struct {
	TransactionID string         `json:"transactionId"`
	CustomerID    string         `json:"customerId"`
	PlanID        string         `json:"planId"`
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	PaymentMethod string         `json:"paymentMethod,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PaymentStatus is a subscription payment lifecycle state.
type PaymentStatus string

const (
	PaymentStatusRequested PaymentStatus = "requested"
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusPending   PaymentStatus = "pending"
)

// Topic returns the produced topic for s, or "" when s has none.
func (s PaymentStatus) Topic() string {
	switch s {
	case PaymentStatusRequested:
		return TopicSubscriptionPaymentRequest
	case PaymentStatusInitiated:
		return TopicSubscriptionPaymentInitiated
	case PaymentStatusSuccess:
		return TopicSubscriptionPaymentSuccess
	case PaymentStatusFailed:
		return TopicSubscriptionPaymentFailed
	case PaymentStatusPending:
		return TopicSubscriptionPaymentPending
	}
	return ""
}
