package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/lock"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/pool"
	"github.com/prn-tf/warden/internal/repository"
)

// countingHasher wraps a real hasher and counts Verify calls.
type countingHasher struct {
	crypto.PasswordHasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(ctx, plaintext, hash)
}

type env struct {
	repo    repository.UserRepository
	hasher  *countingHasher
	levels  domain.AccountLevels
	auth    *AuthService
	authz   *AuthzService
	account *AccountService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	p, err := pool.OpenSQLite(ctx, config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "service.db"),
		MaxConnections: 4,
		AcquireTimeout: time.Second,
		IdleTimeout:    time.Minute,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	_, err = repository.NewMigrator(p, zerolog.Nop()).Up(ctx)
	require.NoError(t, err)

	h := &countingHasher{PasswordHasher: crypto.NewBcryptHasher(crypto.HasherConfig{MaxConcurrent: 4}, zerolog.Nop(), nil)}
	levels := domain.DefaultAccountLevels()
	repo := repository.NewUserRepository(p, h, levels, zerolog.Nop(), nil)

	authn, err := NewAuthService(ctx, repo, h, zerolog.Nop(), nil)
	require.NoError(t, err)

	return &env{
		repo:    repo,
		hasher:  h,
		levels:  levels,
		auth:    authn,
		authz:   NewAuthzService(repo, levels, zerolog.Nop(), nil),
		account: NewAccountService(repo, levels, lock.NewMemoryLocker(), config.LockConfig{}, zerolog.Nop()),
	}
}

func (e *env) mustCreate(t *testing.T, username, password string, level domain.AccountLevel) repository.User {
	t.Helper()
	u, err := e.repo.Create(context.Background(), username, password, level)
	require.NoError(t, err)
	return u
}

// mockUserRepository is a testify mock of repository.UserRepository used for
// failure paths.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, username, plaintext string, level domain.AccountLevel) (repository.User, error) {
	args := m.Called(ctx, username, plaintext, level)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockUserRepository) FindByUsername(ctx context.Context, username string) (repository.Credential, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(repository.Credential), args.Error(1)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (repository.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockUserRepository) FindByIDAndUsername(ctx context.Context, id int64, username string) (repository.User, error) {
	args := m.Called(ctx, id, username)
	return args.Get(0).(repository.User), args.Error(1)
}

func (m *mockUserRepository) ListAll(ctx context.Context) ([]repository.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]repository.User)
	return users, args.Error(1)
}

func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int64, plaintext string) error {
	args := m.Called(ctx, id, plaintext)
	return args.Error(0)
}

func (m *mockUserRepository) SetAccountLevel(ctx context.Context, id int64, level domain.AccountLevel) (repository.User, error) {
	args := m.Called(ctx, id, level)
	return args.Get(0).(repository.User), args.Error(1)
}

var _ repository.UserRepository = (*mockUserRepository)(nil)

// brokenHasher fails every Hash call.
type brokenHasher struct {
	crypto.PasswordHasher
}

func (brokenHasher) Hash(context.Context, string) (string, error) {
	return "", domain.NewDomainError(domain.ErrHashingUnavailable, "hasher offline", "")
}

func datastoreDown(op string) error {
	return fmt.Errorf("%s: %w: connection refused", op, domain.ErrDatastoreUnavailable)
}
