package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/lock"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/repository"
)

// Install lock defaults, used when LockConfig leaves a field zero.
const (
	defaultLockTTL        = 30 * time.Second
	defaultLockWait       = 10 * time.Second
	defaultLockRetryDelay = 100 * time.Millisecond
)

// AccountService handles account management operations for the router and
// the admin CLI.
type AccountService struct {
	users   repository.UserRepository
	levels  domain.AccountLevels
	locker  lock.Locker
	lockCfg config.LockConfig
	logger  zerolog.Logger
}

// NewAccountService creates a new AccountService. A nil locker falls back to
// an in-process MemoryLocker.
func NewAccountService(users repository.UserRepository, levels domain.AccountLevels, locker lock.Locker, lockCfg config.LockConfig, logger zerolog.Logger) *AccountService {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if lockCfg.TTL == 0 {
		lockCfg.TTL = defaultLockTTL
	}
	if lockCfg.Wait == 0 {
		lockCfg.Wait = defaultLockWait
	}
	if lockCfg.RetryDelay == 0 {
		lockCfg.RetryDelay = defaultLockRetryDelay
	}

	return &AccountService{
		users:   users,
		levels:  levels,
		locker:  locker,
		lockCfg: lockCfg,
		logger:  logger.With().Str("service", "account").Logger(),
	}
}

// RegisterInput contains the data needed to create an account.
type RegisterInput struct {
	Username string
	Password string

	// Level defaults to the standard level when nil.
	Level *domain.AccountLevel
}

// Register creates an account.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (repository.User, error) {
	level := s.levels.Standard
	if input.Level != nil {
		level = *input.Level
	}

	user, err := s.users.Create(ctx, input.Username, input.Password, level)
	if err != nil {
		s.logFailure(err, "failed to register user", input.Username)
		return repository.User{}, err
	}
	return user, nil
}

// Install creates the first administrator. It refuses when any user exists.
// Concurrent installs are serialized through the install lock.
func (s *AccountService) Install(ctx context.Context, username, password string) (repository.User, error) {
	key := lock.Keys.Install()
	retries := int(s.lockCfg.Wait / s.lockCfg.RetryDelay)
	token, acquired, err := lock.AcquireWithRetry(ctx, s.locker, key, s.lockCfg.TTL, retries, s.lockCfg.RetryDelay)
	if err != nil {
		return repository.User{}, fmt.Errorf("failed to acquire install lock: %w", err)
	}
	if !acquired {
		return repository.User{}, ErrInstallInProgress
	}
	defer func() {
		if _, err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release install lock")
		}
	}()

	n, err := s.users.Count(ctx)
	if err != nil {
		return repository.User{}, err
	}
	if n > 0 {
		return repository.User{}, fmt.Errorf("%w: %d found", ErrAlreadyInstalled, n)
	}

	level := s.levels.Administrator
	user, err := s.Register(ctx, RegisterInput{Username: username, Password: password, Level: &level})
	if err != nil {
		return repository.User{}, err
	}

	s.logger.Info().Int64("user_id", user.ID()).Str("username", user.Username()).Msg("administrator installed")
	return user, nil
}

// List returns every account.
func (s *AccountService) List(ctx context.Context) ([]repository.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		s.logFailure(err, "failed to list users", "")
		return nil, err
	}
	return users, nil
}

// Get retrieves an account by ID.
func (s *AccountService) Get(ctx context.Context, id int64) (repository.User, error) {
	return s.users.FindByID(ctx, id)
}

// DeleteByUsername deletes an account by username and returns the number of
// rows removed.
func (s *AccountService) DeleteByUsername(ctx context.Context, username string) (int64, error) {
	n, err := s.users.DeleteByUsername(ctx, username)
	if err != nil {
		s.logFailure(err, "failed to delete user", username)
		return 0, err
	}
	return n, nil
}

// DeleteByID deletes an account by ID and returns the number of rows removed.
func (s *AccountService) DeleteByID(ctx context.Context, id int64) (int64, error) {
	n, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		s.logFailure(err, "failed to delete user", fmt.Sprint(id))
		return 0, err
	}
	return n, nil
}

// SetAccountLevel changes an account's level.
func (s *AccountService) SetAccountLevel(ctx context.Context, id int64, level domain.AccountLevel) (repository.User, error) {
	user, err := s.users.SetAccountLevel(ctx, id, level)
	if err != nil {
		s.logFailure(err, "failed to set account level", fmt.Sprint(id))
		return repository.User{}, err
	}
	return user, nil
}

// logFailure logs pool and datastore failures at error, tagged with the
// database category. Caller-caused rejections are logged at debug and
// anything else at warn.
func (s *AccountService) logFailure(err error, msg, subject string) {
	switch {
	case domain.IsResource(err):
		s.logger.Error().Err(err).
			Str("category", logging.CategoryDatabase).
			Str("subject", subject).
			Msg(msg)
	case domain.IsValidation(err),
		domain.CodeOf(err) == domain.CodeDuplicateUsername,
		domain.CodeOf(err) == domain.CodeRecordNotFound:
		s.logger.Debug().Err(err).Str("subject", subject).Msg(msg)
	default:
		s.logger.Warn().Err(err).Str("subject", subject).Msg(msg)
	}
}
