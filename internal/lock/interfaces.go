// Package lock provides local and distributed locking.
// Single-node deployments use MemoryLocker; several server or admin
// processes sharing one datastore use RedisLocker.
package lock

import (
	"context"
	"time"
)

// Locker acquires and releases named locks that expire after a TTL.
// Every successful Acquire returns a token that identifies that holder;
// Release only removes the lock while it still carries the token.
type Locker interface {
	// Acquire attempts to acquire a lock. It returns false when the lock is
	// held by someone else.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)

	// Release releases the lock taken with token. It returns false when the
	// lock has expired or now belongs to another holder.
	Release(ctx context.Context, key, token string) (bool, error)

	// Close releases resources held by the Locker.
	Close() error
}

// AcquireWithRetry calls Acquire up to maxRetries+1 times, sleeping
// retryDelay between attempts.
func AcquireWithRetry(ctx context.Context, l Locker, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (string, bool, error) {
	for i := 0; i <= maxRetries; i++ {
		token, acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return "", false, err
		}
		if acquired {
			return token, true, nil
		}

		if i < maxRetries {
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return "", false, nil
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation.
var Keys = lockKeys{}

type lockKeys struct{}

// Install returns the key that serializes first-administrator installation.
func (lockKeys) Install() string {
	return "warden:lock:install"
}
