package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"accounting-sync/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

func TestConsumer_RoutesAndCommitsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	router := mocks.NewMockPaymentEventRouter(ctrl)
	first := kafka.Message{Topic: "subscription-payments", Key: []byte("k1"), Value: []byte(`{"a":1}`), Offset: 10}
	second := kafka.Message{Topic: "payment-analytics", Key: []byte("k2"), Value: []byte(`{"a":2}`), Offset: 11}
	reader := newFakeReader(first, second)
	close(reader.msgs)

	gomock.InOrder(
		router.EXPECT().RouteMessage(gomock.Any(), "subscription-payments", []byte("k1"), []byte(`{"a":1}`)).Return(nil),
		router.EXPECT().RouteMessage(gomock.Any(), "payment-analytics", []byte("k2"), []byte(`{"a":2}`)).Return(nil),
	)

	c := NewConsumer(reader, router, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))

	commits := reader.commits()
	require.Len(t, commits, 2)
	assert.Equal(t, int64(10), commits[0].Offset)
	assert.Equal(t, int64(11), commits[1].Offset)
}

func TestConsumer_CommitsWhenRouterFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	router := mocks.NewMockPaymentEventRouter(ctrl)
	reader := newFakeReader(kafka.Message{Topic: "payment-transactions", Value: []byte("x"), Offset: 3})
	close(reader.msgs)

	router.EXPECT().RouteMessage(gomock.Any(), "payment-transactions", gomock.Any(), []byte("x")).
		Return(errors.New("dead letter publish failed"))

	c := NewConsumer(reader, router, zerolog.Nop())
	require.NoError(t, c.Run(context.Background()))
	assert.Len(t, reader.commits(), 1)
}

func TestConsumer_RetriesFetchErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	router := mocks.NewMockPaymentEventRouter(ctrl)
	reader := newFakeReader(kafka.Message{Topic: "subscription-events", Value: []byte("{}")})
	reader.fetchErrs <- errors.New("coordinator not available")
	close(reader.msgs)

	router.EXPECT().RouteMessage(gomock.Any(), "subscription-events", gomock.Any(), gomock.Any()).Return(nil)

	c := NewConsumer(reader, router, zerolog.Nop())
	c.backoff = time.Millisecond
	require.NoError(t, c.Run(context.Background()))
	assert.Len(t, reader.commits(), 1)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	router := mocks.NewMockPaymentEventRouter(ctrl)
	reader := newFakeReader()

	c := NewConsumer(reader, router, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
