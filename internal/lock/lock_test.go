package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	token, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	released, err := l.Release(ctx, "k", "someone-else")
	require.NoError(t, err)
	assert.False(t, released, "a foreign token cannot release")

	released, err = l.Release(ctx, "k", token)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = l.Release(ctx, "k", token)
	require.NoError(t, err)
	assert.False(t, released)

	next, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, token, next)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	_, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, err = l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")
}

func TestMemoryLocker_StaleHolderCannotRelease(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryLocker()
	l.now = func() time.Time { return now }

	first, ok, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	second, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := l.Release(ctx, "k", first)
	require.NoError(t, err)
	assert.False(t, released)

	_, ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "the second holder still owns the lock")

	released, err = l.Release(ctx, "k", second)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewMemoryLocker().Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireWithRetry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	held, ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = AcquireWithRetry(ctx, l, "k", time.Minute, 2, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = l.Release(ctx, "k", held)
	}()
	token, ok, err := AcquireWithRetry(ctx, l, "k", time.Minute, 100, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)
}

func TestAcquireWithRetry_ContextDone(t *testing.T) {
	l := NewMemoryLocker()
	_, ok, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = AcquireWithRetry(ctx, l, "k", time.Minute, 1000, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "warden:lock:install", Keys.Install())
}

// TestRedisLocker runs against a real server when WARDEN_TEST_REDIS_ADDR is set.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("WARDEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WARDEN_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	l := newRedisLocker(redis.NewClient(&redis.Options{Addr: addr}))
	defer l.Close()

	key := "warden:test:" + t.Name()
	first, ok, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := l.Release(ctx, key, "someone-else")
	require.NoError(t, err)
	assert.False(t, released, "only the holder can release")

	released, err = l.Release(ctx, key, first)
	require.NoError(t, err)
	assert.True(t, released)

	second, ok, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	released, err = l.Release(ctx, key, first)
	require.NoError(t, err)
	assert.False(t, released, "a stale token cannot release a newer lock")

	_, _ = l.Release(ctx, key, second)
}
