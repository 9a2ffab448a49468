package redis

import (
	"context"
	"fmt"
	"time"

	"accounting-sync/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Command timeouts stay well under the sync lock poll so a stalled Redis
// degrades a batch instead of hanging it.
const (
	dialTimeout = 2 * time.Second
	cmdTimeout  = 500 * time.Millisecond
)

// NewClient connects the client shared by the sync lock, batch cache,
// processed-event store and rate limiter.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr()).Int("db", cfg.DB).Msg("Redis ready")
	return client, nil
}

func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  cmdTimeout,
		WriteTimeout: cmdTimeout,
	}
}
