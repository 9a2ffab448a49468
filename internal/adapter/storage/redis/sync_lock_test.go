package redis

import (
	"context"
	"testing"
	"time"

	"accounting-sync/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLock_AcquireAndRelease(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewSyncLock(client, 10*time.Millisecond)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, "sync:lock:c1", 45*time.Second, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 45*time.Second, s.TTL("sync:lock:c1"))

	_, err = lock.Acquire(ctx, "sync:lock:c1", 45*time.Second, 0)
	assert.ErrorIs(t, err, ports.ErrLockNotAcquired)

	require.NoError(t, lock.Release(ctx, "sync:lock:c1", token))
	assert.False(t, s.Exists("sync:lock:c1"))

	_, err = lock.Acquire(ctx, "sync:lock:c1", 45*time.Second, 0)
	assert.NoError(t, err)
}

func TestSyncLock_ReleaseWithForeignTokenKeepsLock(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewSyncLock(client, 10*time.Millisecond)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, "sync:lock:c1", time.Minute, 0)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx, "sync:lock:c1", "someone-else"))
	got, err := s.Get("sync:lock:c1")
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestSyncLock_WaitsForHolder(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewSyncLock(client, 10*time.Millisecond)
	ctx := context.Background()

	token, err := lock.Acquire(ctx, "sync:lock:c1", time.Minute, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = lock.Release(context.Background(), "sync:lock:c1", token)
	}()

	next, err := lock.Acquire(ctx, "sync:lock:c1", time.Minute, 2*time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, token, next)
}

func TestSyncLock_ExpiredLockIsFree(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewSyncLock(client, 10*time.Millisecond)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "sync:lock:c1", time.Second, 0)
	require.NoError(t, err)
	s.FastForward(2 * time.Second)

	_, err = lock.Acquire(ctx, "sync:lock:c1", time.Second, 0)
	assert.NoError(t, err)
}

func TestSyncLock_ContextCancelled(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewSyncLock(client, 10*time.Millisecond)

	_, err := lock.Acquire(context.Background(), "sync:lock:c1", time.Minute, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = lock.Acquire(ctx, "sync:lock:c1", time.Minute, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
