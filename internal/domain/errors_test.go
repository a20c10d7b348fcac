package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"bad username", ErrBadUsername, CodeBadUser},
		{"wrapped bad username", fmt.Errorf("create: %w", ErrBadUsername), CodeBadUser},
		{"bad password", ErrBadPassword, CodeBadPassword},
		{"bad level", ErrBadAccountLevel, CodeBadAccountLevel},
		{"hash", NewDomainError(ErrHashingUnavailable, "bcrypt", "someone"), CodeHashError},
		{"duplicate", ErrDuplicateUsername, CodeDuplicateUsername},
		{"not found", ErrUserNotFound, CodeRecordNotFound},
		{"pool", fmt.Errorf("%w: acquire", ErrPoolExhausted), CodePoolExhausted},
		{"datastore", fmt.Errorf("%w: insert: %w", ErrDatastoreUnavailable, errors.New("io")), CodeDatastoreUnavailable},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("x: %w", ErrBadUsername)))
	assert.False(t, IsValidation(ErrDuplicateUsername))
	assert.True(t, IsResource(ErrPoolExhausted))
	assert.True(t, IsResource(fmt.Errorf("%w: ping", ErrDatastoreUnavailable)))
	assert.False(t, IsResource(ErrHashingUnavailable))
}

func TestDomainError(t *testing.T) {
	err := NewDomainError(ErrUserNotFound, "lookup by id", "42")
	assert.Equal(t, "user not found: lookup by id (42)", err.Error())
	assert.True(t, errors.Is(err, ErrUserNotFound))

	assert.Equal(t, "user not found", NewDomainError(ErrUserNotFound, "", "").Error())
}

func TestAccountLevels(t *testing.T) {
	levels := DefaultAccountLevels()
	assert.True(t, levels.Contains(0))
	assert.True(t, levels.Contains(1))
	assert.False(t, levels.Contains(7))
	assert.True(t, levels.IsAdministrator(1))
	assert.False(t, levels.IsAdministrator(0))

	custom := AccountLevels{Standard: 3, Administrator: 9}
	assert.True(t, custom.IsAdministrator(9))
	assert.False(t, custom.Contains(1))
}
