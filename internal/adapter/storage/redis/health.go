package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// healthKey is written on every check. Sync locks and event claims need a
// writable primary, so a read-only replica counts as unhealthy.
const healthKey = "health:accounting-sync"

type HealthCheck struct {
	client goredis.UniversalClient
}

func NewHealthCheck(client goredis.UniversalClient) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, healthKey, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis not writable: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
