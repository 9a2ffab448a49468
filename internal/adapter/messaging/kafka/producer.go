package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"accounting-sync/internal/core/domain"
	"accounting-sync/internal/core/ports"

	"github.com/segmentio/kafka-go"
)

// EnvelopePublisher implements ports.EventPublisher.
type EnvelopePublisher struct {
	writer MessageWriter
}

// NewEnvelopePublisher creates a publisher over writer.
func NewEnvelopePublisher(writer MessageWriter) *EnvelopePublisher {
	return &EnvelopePublisher{writer: writer}
}

// Publish writes envelope as JSON to topic, keyed by key.
func (p *EnvelopePublisher) Publish(ctx context.Context, topic, key string, envelope domain.EventEnvelope) error {
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(envelope.EventType)},
			{Key: HeaderEventID, Value: []byte(envelope.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to %s: %w", topic, err)
	}
	return nil
}

// DeadLetterWriter implements ports.DeadLetterPublisher.
type DeadLetterWriter struct {
	writer MessageWriter
	topic  string
}

// NewDeadLetterWriter creates a dead-letter publisher targeting topic.
func NewDeadLetterWriter(writer MessageWriter, topic string) *DeadLetterWriter {
	return &DeadLetterWriter{writer: writer, topic: topic}
}

// Publish parks the original bytes with the failure recorded in headers.
func (d *DeadLetterWriter) Publish(ctx context.Context, dl ports.DeadLetter) error {
	msg := kafka.Message{
		Topic: d.topic,
		Key:   dl.Key,
		Value: dl.Value,
		Headers: []kafka.Header{
			{Key: HeaderOriginalTopic, Value: []byte(dl.Topic)},
			{Key: HeaderError, Value: []byte(dl.Error)},
			{Key: HeaderAttempts, Value: []byte(strconv.Itoa(dl.Attempts))},
		},
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing dead letter: %w", err)
	}
	return nil
}
