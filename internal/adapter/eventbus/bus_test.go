package eventbus

import (
	"context"
	"errors"
	"testing"

	"accounting-sync/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestBus_FanOutInOrder(t *testing.T) {
	bus := New()
	var calls []string
	bus.Subscribe(domain.ChannelPaymentReceived, func(_ context.Context, e domain.NormalizedPaymentEvent) error {
		calls = append(calls, "first:"+e.TransactionID)
		return nil
	})
	bus.Subscribe(domain.ChannelPaymentReceived, func(_ context.Context, e domain.NormalizedPaymentEvent) error {
		calls = append(calls, "second:"+e.TransactionID)
		return nil
	})
	bus.Subscribe(domain.ChannelPaymentFailed, func(context.Context, domain.NormalizedPaymentEvent) error {
		calls = append(calls, "other channel")
		return nil
	})

	err := bus.Publish(context.Background(), domain.ChannelPaymentReceived, domain.NormalizedPaymentEvent{TransactionID: "txn_1"})

	assert.NoError(t, err)
	assert.Equal(t, []string{"first:txn_1", "second:txn_1"}, calls)
}

func TestBus_JoinsHandlerErrors(t *testing.T) {
	bus := New()
	errA := errors.New("a failed")
	ran := false
	bus.Subscribe("ch", func(context.Context, domain.NormalizedPaymentEvent) error { return errA })
	bus.Subscribe("ch", func(context.Context, domain.NormalizedPaymentEvent) error { panic("boom") })
	bus.Subscribe("ch", func(context.Context, domain.NormalizedPaymentEvent) error {
		ran = true
		return nil
	})

	err := bus.Publish(context.Background(), "ch", domain.NormalizedPaymentEvent{})

	assert.ErrorIs(t, err, errA)
	assert.ErrorContains(t, err, "event handler panic: boom")
	assert.True(t, ran, "later handlers still run")
}

func TestBus_NoSubscribers(t *testing.T) {
	assert.NoError(t, New().Publish(context.Background(), "nobody", domain.NormalizedPaymentEvent{}))
}
