package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"accounting-sync/config"
	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopePublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewEnvelopePublisher(w)
	env := domain.EventEnvelope{
		EventType: domain.TopicSubscriptionPaymentSuccess,
		EventID:   "evt-1",
		Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Version:   domain.EnvelopeVersion,
		Source:    "accounting-sync",
		Payload:   domain.SubscriptionPayment{TransactionID: "txn_1", Amount: 10, Currency: "USD"},
	}

	require.NoError(t, p.Publish(context.Background(), domain.TopicSubscriptionPaymentSuccess, "txn_1", env))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, domain.TopicSubscriptionPaymentSuccess, msg.Topic)
	assert.Equal(t, []byte("txn_1"), msg.Key)
	assert.Equal(t, "evt-1", headerValue(msg, HeaderEventID))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "1.0", decoded["version"])
	assert.Equal(t, "evt-1", decoded["eventId"])
}

func TestEnvelopePublisher_WriteError(t *testing.T) {
	p := NewEnvelopePublisher(&fakeWriter{err: errors.New("leader not available")})

	err := p.Publish(context.Background(), "t", "k", domain.EventEnvelope{})
	assert.ErrorContains(t, err, "writing to t")
}

func TestDeadLetterWriter_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := NewDeadLetterWriter(w, "payment-events-dlq")

	err := d.Publish(context.Background(), ports.DeadLetter{
		Topic:    "subscription-payments",
		Key:      []byte("k"),
		Value:    []byte("not json"),
		Error:    "invalid message",
		Attempts: 4,
	})
	require.NoError(t, err)

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "payment-events-dlq", msg.Topic)
	assert.Equal(t, []byte("not json"), msg.Value)
	assert.Equal(t, "subscription-payments", headerValue(msg, HeaderOriginalTopic))
	assert.Equal(t, "invalid message", headerValue(msg, HeaderError))
	assert.Equal(t, "4", headerValue(msg, HeaderAttempts))
}

func TestNewReaderAndWriter(t *testing.T) {
	cfg := config.KafkaConfig{
		Brokers: []string{"127.0.0.1:9092"},
		GroupID: "accounting-payment-consumer",
		Topics:  config.DefaultTopics,
	}

	r := NewReader(cfg)
	assert.Equal(t, cfg.Topics, r.Config().GroupTopics)
	assert.Equal(t, cfg.GroupID, r.Config().GroupID)
	require.NoError(t, r.Close())

	w := NewWriter(cfg)
	assert.Empty(t, w.Topic)
	require.NoError(t, w.Close())
}

func TestHealthCheck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	hc := NewHealthCheck(nil)
	assert.Equal(t, "kafka", hc.Name())
	assert.Error(t, hc.Ping(ctx))

	assert.Error(t, NewHealthCheck([]string{"127.0.0.1:1"}).Ping(ctx))
}
