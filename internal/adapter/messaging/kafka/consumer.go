package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"accounting-sync/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultFetchBackoff = time.Second

// Consumer feeds fetched messages to the payment event router and commits
// each offset once the router is done with it.
type Consumer struct {
	reader  MessageReader
	router  ports.PaymentEventRouter
	log     zerolog.Logger
	backoff time.Duration
}

// NewConsumer creates a consumer over reader.
func NewConsumer(reader MessageReader, router ports.PaymentEventRouter, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		router:  router,
		log:     log.With().Str("component", "kafka_consumer").Logger(),
		backoff: defaultFetchBackoff,
	}
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Msg("payment event consumer started")
	defer c.log.Info().Msg("payment event consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error().Err(err).Msg("fetching message")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		if err := c.router.RouteMessage(ctx, msg.Topic, msg.Key, msg.Value); err != nil {
			// The message could not be parked either; it is committed anyway
			// so one poison message cannot stall the partition.
			c.log.Error().Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("message dropped")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).
				Str("topic", msg.Topic).
				Int64("offset", msg.Offset).
				Msg("committing offset")
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
