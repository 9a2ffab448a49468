package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accounting-sync/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockRetry = 50 * time.Millisecond

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SyncLock implements ports.SyncLocker as a single-instance Redis lock.
type SyncLock struct {
	client goredis.UniversalClient
	retry  time.Duration
}

// NewSyncLock creates a lock polling every retry while it waits.
// A non-positive retry uses the default interval.
func NewSyncLock(client goredis.UniversalClient, retry time.Duration) *SyncLock {
	if retry <= 0 {
		retry = defaultLockRetry
	}
	return &SyncLock{client: client, retry: retry}
}

// Acquire takes the lock for ttl, waiting up to wait while another owner holds it.
func (l *SyncLock) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		_, err := l.client.SetArgs(ctx, key, token, goredis.SetArgs{Mode: "NX", TTL: ttl}).Result()
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("redis lock acquire: %w", err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ports.ErrLockNotAcquired
		}

		timer := time.NewTimer(min(l.retry, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// Release frees the lock if token still owns it. A lost lock is not an error.
func (l *SyncLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
