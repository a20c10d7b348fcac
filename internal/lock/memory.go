package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker implements Locker using in-process locks.
// Locks are not shared across processes.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates a new in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

// Acquire attempts to acquire a lock.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, exists := m.locks[key]; exists && now.Before(held.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	m.locks[key] = memoryLock{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release releases a lock if token still holds it.
func (m *MemoryLocker) Release(ctx context.Context, key, token string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held, exists := m.locks[key]
	if !exists || held.token != token {
		return false, nil
	}
	delete(m.locks, key)
	return m.now().Before(held.expiresAt), nil
}

// Close is a no-op.
func (m *MemoryLocker) Close() error { return nil }

var _ Locker = (*MemoryLocker)(nil)
