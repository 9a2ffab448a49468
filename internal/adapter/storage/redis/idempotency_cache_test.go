package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "sync:batch:company-1:batch-1"
	value := []byte(`{"results":[],"changes":[],"timestamp":"2026-03-01T12:00:00Z"}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, s.Exists(key), "key is stored without an extra prefix")
	assert.Equal(t, 24*time.Hour, s.TTL(key))
}

func TestIdempotencyCache_Expires(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	s.FastForward(2 * time.Minute)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestIdempotencyCache_StoreDown(t *testing.T) {
	s, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis cache get")
	assert.ErrorContains(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute), "redis cache set")
}
