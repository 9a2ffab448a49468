package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProcessedEventStore implements ports.ProcessedEventStore using SET NX.
type ProcessedEventStore struct {
	client goredis.UniversalClient
}

// NewProcessedEventStore creates a new Redis-backed dedup store.
func NewProcessedEventStore(client goredis.UniversalClient) *ProcessedEventStore {
	return &ProcessedEventStore{client: client}
}

// Claim atomically marks key as processed.
// Returns true if the key was new, false if it was already claimed.
func (s *ProcessedEventStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, key, time.Now().UTC().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event claim: %w", err)
	}
	return result == "OK", nil
}

// Release drops a claim so a later redelivery is processed again.
func (s *ProcessedEventStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis event release: %w", err)
	}
	return nil
}
