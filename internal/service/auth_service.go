package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/metrics"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/repository"
)

// AuthResult is the outcome of an authentication attempt.
// User is set only when Success is true and never carries the hash.
type AuthResult struct {
	Success bool
	User    *repository.User
}

// AuthService decides login success.
type AuthService struct {
	users   repository.UserRepository
	hasher  crypto.PasswordHasher
	logger  zerolog.Logger
	metrics *metrics.Metrics

	// decoyHash is a hash of a random secret. Unknown usernames are
	// verified against it.
	decoyHash string
}

// NewAuthService creates a new AuthService. It hashes the decoy secret up
// front and fails if that is not possible.
func NewAuthService(
	ctx context.Context,
	users repository.UserRepository,
	hasher crypto.PasswordHasher,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*AuthService, error) {
	secret, err := crypto.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate decoy secret: %w", err)
	}
	decoy, err := hasher.Hash(ctx, secret)
	if err != nil {
		return nil, fmt.Errorf("hash decoy secret: %w", err)
	}

	return &AuthService{
		users:     users,
		hasher:    hasher,
		logger:    logger.With().Str("service", "auth").Str("category", logging.CategoryAuthentication).Logger(),
		metrics:   m,
		decoyHash: decoy,
	}, nil
}

// Authenticate verifies username and plaintext.
//
// Unknown usernames and wrong passwords produce the same result and the same
// amount of hashing work: an unknown username is verified against a decoy
// hash. Only pool/datastore failures and cancellation are returned as errors.
func (s *AuthService) Authenticate(ctx context.Context, username, plaintext string) (AuthResult, error) {
	cred, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error().Err(err).Str("username", username).Msg("credential lookup failed")
			s.metrics.ObserveAuthentication(metrics.ResultError)
			return AuthResult{}, err
		}

		s.hasher.Verify(ctx, plaintext, s.decoyHash)
		if ctx.Err() != nil {
			return AuthResult{}, ctx.Err()
		}
		return s.fail(username), nil
	}

	if !s.hasher.Verify(ctx, plaintext, cred.HashedPassword()) {
		if ctx.Err() != nil {
			return AuthResult{}, ctx.Err()
		}
		return s.fail(username), nil
	}

	user := cred.User()
	s.metrics.ObserveAuthentication(metrics.ResultSuccess)
	s.logger.Info().
		Int64("user_id", user.ID()).
		Str("username", user.Username()).
		Msg("user authenticated")

	return AuthResult{Success: true, User: &user}, nil
}

func (s *AuthService) fail(username string) AuthResult {
	s.metrics.ObserveAuthentication(metrics.ResultFailure)
	s.logger.Info().Str("username", username).Msg("authentication failed")
	return AuthResult{}
}

// ChangePassword replaces a user's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	cred, err := s.users.FindByUsername(ctx, user.Username())
	if err != nil {
		return err
	}

	if !s.hasher.Verify(ctx, current, cred.HashedPassword()) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().Int64("user_id", userID).Msg("password change rejected")
		return ErrInvalidCredentials
	}

	if err := s.users.UpdatePassword(ctx, userID, next); err != nil {
		return err
	}

	s.logger.Info().Int64("user_id", userID).Msg("password changed")
	return nil
}
