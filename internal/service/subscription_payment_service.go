package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"
	"accounting-sync/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SubscriptionPaymentServiceImpl publishes the subscription payment lifecycle
// on the subscription.payment.* topics.
type SubscriptionPaymentServiceImpl struct {
	publisher ports.EventPublisher
	source    string
	log       zerolog.Logger
	now       func() time.Time
}

// NewSubscriptionPaymentService creates a new publisher service. source is
// stamped on every envelope.
func NewSubscriptionPaymentService(publisher ports.EventPublisher, source string, log zerolog.Logger) *SubscriptionPaymentServiceImpl {
	return &SubscriptionPaymentServiceImpl{
		publisher: publisher,
		source:    source,
		log:       log,
		now:       time.Now,
	}
}

// RequestPayment publishes a subscription.payment.request event.
func (s *SubscriptionPaymentServiceImpl) RequestPayment(ctx context.Context, scope domain.SyncScope, payment domain.SubscriptionPayment) (*domain.EventEnvelope, error) {
	if math.IsNaN(payment.Amount) || math.IsInf(payment.Amount, 0) || payment.Amount <= 0 {
		return nil, apperror.Validation("amount must be a positive number")
	}
	payment.Status = string(domain.PaymentStatusRequested)
	return s.publish(ctx, scope, domain.PaymentStatusRequested, payment)
}

// UpdateStatus publishes the lifecycle event matching payment.Status.
func (s *SubscriptionPaymentServiceImpl) UpdateStatus(ctx context.Context, scope domain.SyncScope, payment domain.SubscriptionPayment) (*domain.EventEnvelope, error) {
	status := domain.PaymentStatus(payment.Status)
	if status == domain.PaymentStatusRequested || status.Topic() == "" {
		return nil, apperror.ErrInvalidPaymentStatus(payment.Status)
	}
	return s.publish(ctx, scope, status, payment)
}

func (s *SubscriptionPaymentServiceImpl) publish(ctx context.Context, scope domain.SyncScope, status domain.PaymentStatus, payment domain.SubscriptionPayment) (*domain.EventEnvelope, error) {
	if payment.TransactionID == "" {
		return nil, apperror.Validation("transactionId is required")
	}

	topic := status.Topic()
	env := domain.EventEnvelope{
		EventType: topic,
		EventID:   uuid.NewString(),
		Timestamp: s.now().UTC(),
		Version:   domain.EnvelopeVersion,
		Source:    s.source,
		Payload:   payment,
	}

	if err := s.publisher.Publish(ctx, topic, payment.TransactionID, env); err != nil {
		return nil, apperror.ErrEventPublish(fmt.Errorf("publishing %s: %w", topic, err))
	}

	s.log.Info().
		Str("topic", topic).
		Str("event_id", env.EventID).
		Str("transaction_id", payment.TransactionID).
		Str("company_id", scope.CompanyID.String()).
		Str("user_id", scope.UserID.String()).
		Msg("subscription payment event published")

	return &env, nil
}
