// Package repository provides the user repository: the only component that
// reads or writes account rows. Every statement uses bound parameters and
// runs on a connection checked out from the pool.
package repository

import (
	"context"

	"github.com/prn-tf/warden/internal/domain"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create validates, hashes and inserts a new user, then re-reads it.
	// Validation failures return before any I/O. A taken username fails with
	// domain.ErrDuplicateUsername.
	Create(ctx context.Context, username, plaintext string, level domain.AccountLevel) (User, error)

	// FindByUsername returns the user and its stored hash.
	FindByUsername(ctx context.Context, username string) (Credential, error)

	// FindByID retrieves a user by ID.
	FindByID(ctx context.Context, id int64) (User, error)

	// FindByIDAndUsername retrieves a user only if both keys match the same row.
	FindByIDAndUsername(ctx context.Context, id int64, username string) (User, error)

	// ListAll returns every user ordered by ID.
	ListAll(ctx context.Context) ([]User, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)

	// DeleteByUsername deletes by username and returns the affected row count.
	DeleteByUsername(ctx context.Context, username string) (int64, error)

	// DeleteByID deletes by ID and returns the affected row count.
	DeleteByID(ctx context.Context, id int64) (int64, error)

	// UpdatePassword validates and re-hashes plaintext for user id.
	UpdatePassword(ctx context.Context, id int64, plaintext string) error

	// SetAccountLevel validates level and stores it for user id.
	SetAccountLevel(ctx context.Context, id int64, level domain.AccountLevel) (User, error)
}
