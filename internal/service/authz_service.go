package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/metrics"
	"github.com/prn-tf/warden/internal/repository"
)

const (
	checkAdministrator = "administrator"
	checkSelfOrAdmin   = "self_or_admin"
)

// AuthzService decides administrator and self access.
// Every decision is a function of its inputs and the persisted row; nothing
// is cached between calls.
type AuthzService struct {
	users   repository.UserRepository
	levels  domain.AccountLevels
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewAuthzService creates a new AuthzService.
func NewAuthzService(
	users repository.UserRepository,
	levels domain.AccountLevels,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *AuthzService {
	return &AuthzService{
		users:   users,
		levels:  levels,
		logger:  logger.With().Str("service", "authz").Str("category", logging.CategoryAuthorization).Logger(),
		metrics: m,
	}
}

// IsAdministrator reports whether the row matching both userID and username
// carries the administrator level. It returns false when no row matches and
// on any lookup failure.
func (s *AuthzService) IsAdministrator(ctx context.Context, userID int64, username string) bool {
	allowed := s.isAdministrator(ctx, userID, username)
	s.metrics.ObserveAuthorization(checkAdministrator, allowed)
	return allowed
}

func (s *AuthzService) isAdministrator(ctx context.Context, userID int64, username string) bool {
	user, err := s.users.FindByIDAndUsername(ctx, userID, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.deny(checkAdministrator, userID, username, "no matching user")
		} else {
			s.logger.Error().Err(err).
				Int64("user_id", userID).
				Str("username", username).
				Msg("administrator lookup failed")
			s.deny(checkAdministrator, userID, username, "lookup failed")
		}
		return false
	}

	if !s.levels.IsAdministrator(user.AccountLevel()) {
		s.deny(checkAdministrator, userID, username, "not an administrator")
		return false
	}
	return true
}

// IsSelfOrAdmin reports whether the session user may act on pathUserID:
// either it is the same user, or the session user is an administrator.
func (s *AuthzService) IsSelfOrAdmin(ctx context.Context, sessionUserID int64, sessionUsername string, pathUserID int64) bool {
	if sessionUserID == pathUserID {
		s.metrics.ObserveAuthorization(checkSelfOrAdmin, true)
		return true
	}

	allowed := s.isAdministrator(ctx, sessionUserID, sessionUsername)
	if !allowed {
		s.logger.Warn().
			Int64("user_id", sessionUserID).
			Int64("target_user_id", pathUserID).
			Msg("self access denied")
	}
	s.metrics.ObserveAuthorization(checkSelfOrAdmin, allowed)
	return allowed
}

func (s *AuthzService) deny(check string, userID int64, username, reason string) {
	s.logger.Warn().
		Str("check", check).
		Int64("user_id", userID).
		Str("username", username).
		Str("reason", reason).
		Msg("authorization denied")
}
