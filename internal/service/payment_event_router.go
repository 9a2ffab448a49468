package service

import (
	"context"
	"fmt"
	"time"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/rs/zerolog"
)

// RouterOptions configures retry and deduplication of routed payment events.
type RouterOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
	DedupTTL     time.Duration
}

// PaymentEventRouterImpl implements ports.PaymentEventRouter.
type PaymentEventRouterImpl struct {
	bus   ports.EventBus
	store ports.ProcessedEventStore
	dlq   ports.DeadLetterPublisher
	opts  RouterOptions
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPaymentEventRouter creates a new router. store may be nil to disable
// deduplication.
func NewPaymentEventRouter(
	bus ports.EventBus,
	store ports.ProcessedEventStore,
	dlq ports.DeadLetterPublisher,
	opts RouterOptions,
	log zerolog.Logger,
) *PaymentEventRouterImpl {
	return &PaymentEventRouterImpl{
		bus:   bus,
		store: store,
		dlq:   dlq,
		opts:  opts,
		log:   log,
		sleep: sleepCtx,
	}
}

// dedupKey namespaces an idempotency key by channel and event type, so
// distinct events of one transaction are each delivered once.
func dedupKey(channel string, evt *domain.NormalizedPaymentEvent) string {
	return "payment-event:" + channel + ":" + evt.EventType + ":" + evt.IdempotencyKey
}

// RouteMessage normalizes raw and publishes it on the bus channel picked by
// its topic and event type. Unparsable messages and messages whose publish
// keeps failing go to the dead-letter topic. The returned error is non-nil
// only when a message could not be dead-lettered either.
func (r *PaymentEventRouterImpl) RouteMessage(ctx context.Context, topic string, key, raw []byte) error {
	evt, err := NormalizePaymentEvent(topic, raw)
	if err != nil {
		r.log.Warn().Err(err).Str("topic", topic).Msg("rejecting payment message")
		return r.deadLetter(ctx, topic, key, raw, err, 0)
	}

	channel := RouteChannel(topic, evt.EventType)
	if channel == "" {
		r.log.Warn().
			Str("topic", topic).
			Str("event_type", evt.EventType).
			Str("idempotency_key", evt.IdempotencyKey).
			Msg("no route for payment event, dropping")
		return nil
	}

	claimKey := dedupKey(channel, evt)
	claimed := false
	if r.store != nil {
		isNew, err := r.store.Claim(ctx, claimKey, r.opts.DedupTTL)
		switch {
		case err != nil:
			r.log.Warn().Err(err).Str("idempotency_key", evt.IdempotencyKey).Msg("processed-event store error, routing without dedup")
		case !isNew:
			r.log.Info().
				Str("topic", topic).
				Str("event_type", evt.EventType).
				Str("idempotency_key", evt.IdempotencyKey).
				Msg("duplicate payment event, dropping")
			return nil
		default:
			claimed = true
		}
	}

	attempts := 0
	var lastErr error
	for attempts <= r.opts.MaxRetries {
		if attempts > 0 {
			if err := r.sleep(ctx, time.Duration(attempts)*r.opts.RetryBackoff); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		if lastErr = r.bus.Publish(ctx, channel, *evt); lastErr == nil {
			r.log.Debug().
				Str("channel", channel).
				Str("event_type", evt.EventType).
				Str("idempotency_key", evt.IdempotencyKey).
				Int("attempts", attempts).
				Msg("payment event routed")
			return nil
		}
		r.log.Warn().Err(lastErr).Str("channel", channel).Int("attempt", attempts).Msg("publishing payment event failed")
	}

	if claimed {
		if err := r.store.Release(context.Background(), claimKey); err != nil {
			r.log.Warn().Err(err).Str("idempotency_key", evt.IdempotencyKey).Msg("releasing idempotency claim")
		}
	}

	return r.deadLetter(ctx, topic, key, raw, lastErr, attempts)
}

func (r *PaymentEventRouterImpl) deadLetter(ctx context.Context, topic string, key, raw []byte, cause error, attempts int) error {
	if r.dlq == nil {
		return fmt.Errorf("no dead-letter publisher: %w", cause)
	}

	msg := ports.DeadLetter{
		Topic:    topic,
		Key:      key,
		Value:    raw,
		Error:    cause.Error(),
		Attempts: attempts,
	}
	// The consumer context may already be cancelled; the message must still land.
	if err := r.dlq.Publish(context.WithoutCancel(ctx), msg); err != nil {
		r.log.Error().Err(err).Str("topic", topic).Str("cause", cause.Error()).Msg("dead-lettering payment message failed")
		return fmt.Errorf("dead-lettering message from %s: %w", topic, err)
	}

	r.log.Warn().Str("topic", topic).Str("cause", cause.Error()).Int("attempts", attempts).Msg("payment message dead-lettered")
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
