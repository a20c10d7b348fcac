package repository

import (
	"errors"
	"fmt"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/pool"
)

// translate maps a normalised pool error onto the domain taxonomy.
// Context errors and pool/datastore failures pass through with op attached.
func translate(op, resource string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pool.ErrNoRows):
		return domain.NewDomainError(domain.ErrUserNotFound, op, resource)
	case errors.Is(err, pool.ErrUniqueViolation):
		return domain.NewDomainError(domain.ErrDuplicateUsername, op, resource)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
