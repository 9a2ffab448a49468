package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"accounting-sync/internal/core/domain"
)

var (
	// ErrInvalidMessage is returned for a message that is not a JSON object.
	ErrInvalidMessage = errors.New("payment message is not a JSON object")
	// ErrInvalidAmount is returned for a non-numeric or non-finite amount.
	ErrInvalidAmount = errors.New("invalid payment amount")
)

// Canonical payment fields and the producer spellings accepted for each.
// The first non-null alias wins.
var paymentFieldAliases = map[string][]string{
	"eventType":     {"eventType", "event_type", "type"},
	"eventId":       {"eventId", "event_id"},
	"transactionId": {"transactionId", "transaction_id", "paymentId", "payment_id"},
	"customerId":    {"customerId", "customer_id", "userId", "user_id"},
	"planId":        {"planId", "plan_id", "subscriptionPlanId", "subscription_plan_id"},
	"amount":        {"amount", "amountPaid", "amount_paid"},
	"currency":      {"currency", "currencyCode", "currency_code"},
	"paymentMethod": {"paymentMethod", "payment_method", "method"},
	"provider":      {"provider", "paymentProvider", "payment_provider", "gateway"},
	"status":        {"status", "paymentStatus", "payment_status"},
	"completedAt":   {"completedAt", "completed_at", "paidAt", "paid_at"},
	"metadata":      {"metadata", "meta"},
}

// envelopeKeys hold the nested payload of an enveloped message.
var envelopeKeys = []string{"payload", "data"}

type paymentFields map[string]any

func (f paymentFields) lookup(canonical string) any {
	for _, alias := range paymentFieldAliases[canonical] {
		if v, ok := f[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (f paymentFields) str(canonical string) string {
	switch v := f.lookup(canonical).(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// NormalizePaymentEvent maps a raw payment message from any producer onto
// the canonical event shape.
func NormalizePaymentEvent(topic string, raw []byte) (*domain.NormalizedPaymentEvent, error) {
	fields, err := decodePaymentFields(raw)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount(fields.lookup("amount"))
	if err != nil {
		return nil, err
	}

	evt := &domain.NormalizedPaymentEvent{
		EventType:     fields.str("eventType"),
		TransactionID: fields.str("transactionId"),
		CustomerID:    fields.str("customerId"),
		PlanID:        fields.str("planId"),
		Amount:        amount,
		Currency:      strings.ToUpper(fields.str("currency")),
		PaymentMethod: fields.str("paymentMethod"),
		Provider:      fields.str("provider"),
		Status:        fields.str("status"),
		CompletedAt:   parseCompletedAt(fields.lookup("completedAt")),
		Topic:         topic,
	}
	if meta, ok := fields.lookup("metadata").(map[string]any); ok {
		evt.Metadata = meta
	}

	switch {
	case evt.TransactionID != "":
		evt.IdempotencyKey = evt.TransactionID
	case fields.str("eventId") != "":
		evt.IdempotencyKey = fields.str("eventId")
	default:
		evt.IdempotencyKey = contentKey(evt, raw)
	}

	return evt, nil
}

// contentKey hashes the normalized fields of evt, so alias variants of one
// event share a key. raw is hashed only if evt cannot be encoded.
func contentKey(evt *domain.NormalizedPaymentEvent, raw []byte) string {
	canonical, err := json.Marshal(evt)
	if err != nil {
		canonical = append([]byte(evt.Topic), raw...)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// decodePaymentFields parses raw and flattens an envelope. Top-level fields
// take precedence over payload fields.
func decodePaymentFields(raw []byte) (paymentFields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var top map[string]any
	if err := dec.Decode(&top); err != nil || top == nil {
		return nil, ErrInvalidMessage
	}

	for _, key := range envelopeKeys {
		nested, ok := top[key].(map[string]any)
		if !ok {
			continue
		}
		merged := make(paymentFields, len(nested)+len(top))
		for k, v := range nested {
			merged[k] = v
		}
		for k, v := range top {
			if k == key || v == nil {
				continue
			}
			merged[k] = v
		}
		return merged, nil
	}

	return paymentFields(top), nil
}

func parseAmount(v any) (float64, error) {
	var f float64
	switch a := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		parsed, err := a.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, a.String())
		}
		f = parsed
	case string:
		s := strings.TrimSpace(a)
		if s == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, a)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidAmount)
	}
	return f, nil
}

// parseCompletedAt accepts RFC 3339 strings and unix seconds or milliseconds.
// Unparsable values are dropped.
func parseCompletedAt(v any) *time.Time {
	var t time.Time
	switch c := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(c))
		if err != nil {
			return nil
		}
		t = parsed
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			return nil
		}
		if n > 1e12 {
			t = time.UnixMilli(n)
		} else {
			t = time.Unix(n, 0)
		}
	default:
		return nil
	}
	t = t.UTC()
	return &t
}

// Event types that mean money was received or a charge failed.
var (
	receivedEventTypes = map[string]struct{}{
		"subscription_payment_completed": {},
		"subscription_payment_success":   {},
		"payment_completed":              {},
		"payment_success":                {},
		"payment.completed":              {},
		"subscription.payment.success":   {},
	}
	failedEventTypes = map[string]struct{}{
		"subscription_payment_failed": {},
		"payment_failed":              {},
		"payment.failed":              {},
		"subscription.payment.failed": {},
	}
	analyticsEventTypes = map[string]struct{}{
		"payment_analytics": {},
		"payment.analytics": {},
	}
)

// TopicPaymentAnalytics is routed to the analytics channel whatever its event type.
const TopicPaymentAnalytics = "payment-analytics"

// RouteChannel picks the bus channel of an event, or "" to drop it.
func RouteChannel(topic, eventType string) string {
	if topic == TopicPaymentAnalytics {
		return domain.ChannelPaymentAnalytics
	}

	et := strings.ToLower(strings.TrimSpace(eventType))
	if _, ok := receivedEventTypes[et]; ok {
		return domain.ChannelPaymentReceived
	}
	if _, ok := failedEventTypes[et]; ok {
		return domain.ChannelPaymentFailed
	}
	if _, ok := analyticsEventTypes[et]; ok {
		return domain.ChannelPaymentAnalytics
	}
	return ""
}
