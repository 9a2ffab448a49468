// Package kafka connects the payment event pipeline to Kafka using
// segmentio/kafka-go. Readers and writers are hidden behind small
// interfaces so the loops can be tested without a broker.
package kafka

import (
	"context"
	"time"

	"accounting-sync/config"

	"github.com/segmentio/kafka-go"
)

// Header names attached to dead-lettered messages.
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderError         = "x-error"
	HeaderAttempts      = "x-attempts"
	HeaderEventType     = "x-event-type"
	HeaderEventID       = "x-event-id"
)

// MessageReader is the consumer-group surface of *kafka.Reader.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the producer surface of *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader joins the consumer group on all configured topics.
// A group seen for the first time starts at the newest offset.
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
}

// NewWriter creates a topic-less writer; each message names its topic.
// Messages with the same key land on the same partition.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
