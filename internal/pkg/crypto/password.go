// Package crypto provides the credential hasher for Warden.
package crypto

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/identity"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/metrics"
)

// PasswordCost is the bcrypt work factor used for every stored hash.
const PasswordCost = 10

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a salted one-way hash of plaintext.
	// Fails with domain.ErrHashingUnavailable if the primitive cannot run.
	Hash(ctx context.Context, plaintext string) (string, error)

	// Verify reports whether plaintext matches hash. A malformed hash, or a
	// cancelled ctx, yields false.
	Verify(ctx context.Context, plaintext, hash string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
// Work runs on its own goroutines, bounded by a weighted semaphore, so a burst
// of logins cannot monopolise every CPU.
type BcryptHasher struct {
	sem     *semaphore.Weighted
	cost    int
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// HasherConfig configures a BcryptHasher.
type HasherConfig struct {
	// MaxConcurrent bounds simultaneous hash/verify operations.
	// Zero means runtime.GOMAXPROCS(0).
	MaxConcurrent int
}

// NewBcryptHasher creates a new BcryptHasher.
func NewBcryptHasher(cfg HasherConfig, logger zerolog.Logger, m *metrics.Metrics) *BcryptHasher {
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{
		sem:     semaphore.NewWeighted(int64(n)),
		cost:    PasswordCost,
		logger:  logger.With().Str("category", logging.CategoryHasher).Logger(),
		metrics: m,
	}
}

type hashResult struct {
	hash []byte
	err  error
}

// Hash implements PasswordHasher.
func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	start := time.Now()

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}

	ch := make(chan hashResult, 1)
	go func() {
		defer h.sem.Release(1)
		defer func() {
			if p := recover(); p != nil {
				ch <- hashResult{err: fmt.Errorf("bcrypt panic: %v", p)}
			}
		}()
		b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
		ch <- hashResult{hash: b, err: err}
	}()

	var res hashResult
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res = <-ch:
	}

	if res.err == nil && !identity.ValidateHashShape(string(res.hash)) {
		res.err = fmt.Errorf("unexpected hash width %d", len(res.hash))
	}

	if res.err != nil {
		h.metrics.ObserveHash("hash", metrics.ResultError, time.Since(start))
		h.logger.Error().Err(res.err).Msg("failed to hash password")
		return "", domain.NewDomainError(domain.ErrHashingUnavailable, res.err.Error(), "")
	}

	h.metrics.ObserveHash("hash", metrics.ResultSuccess, time.Since(start))
	return string(res.hash), nil
}

// Verify implements PasswordHasher.
func (h *BcryptHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	start := time.Now()

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}

	ch := make(chan bool, 1)
	go func() {
		defer h.sem.Release(1)
		ch <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
	}()

	select {
	case <-ctx.Done():
		return false
	case ok := <-ch:
		result := metrics.ResultSuccess
		if !ok {
			result = metrics.ResultFailure
		}
		h.metrics.ObserveHash("verify", result, time.Since(start))
		return ok
	}
}

// Ensure BcryptHasher implements PasswordHasher.
var _ PasswordHasher = (*BcryptHasher)(nil)
