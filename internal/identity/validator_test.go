package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prn-tf/warden/internal/domain"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		want     bool
	}{
		{"empty", "", false},
		{"two chars", "ab", false},
		{"exactly eight", "gooduser", false},
		{"nine letters", "gooduserx", true},
		{"dots and underscores", "good.user_", true},
		{"mixed case", "Good.User.Name", true},
		{"thirty chars", strings.Repeat("a", 30), true},
		{"thirty one chars", strings.Repeat("a", 31), false},
		{"digit", "gooduser1", false},
		{"space", "good user x", false},
		{"hyphen", "good-user-x", false},
		{"unicode letter", "goodüserxx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateUsername(tt.username))
		})
	}
}

func TestValidateUsername_ShortNeverValid(t *testing.T) {
	for n := 0; n <= UsernameMinLength; n++ {
		assert.False(t, ValidateUsername(strings.Repeat("x", n)), "length %d", n)
	}
	for n := UsernameMinLength + 1; n <= UsernameMaxLength; n++ {
		assert.True(t, ValidateUsername(strings.Repeat("x", n)), "length %d", n)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Equal(t, PasswordTooShort, ValidatePassword(""))
	assert.Equal(t, PasswordTooShort, ValidatePassword("1234567"))
	assert.Equal(t, PasswordOK, ValidatePassword("12345678"))
	assert.Equal(t, PasswordOK, ValidatePassword(strings.Repeat("p", PasswordMaxBytes)))
	assert.Equal(t, PasswordTooLong, ValidatePassword(strings.Repeat("p", PasswordMaxBytes+1)))

	assert.Equal(t, "MIN_LENGTH", PasswordTooShort.String())
	assert.True(t, PasswordOK.OK())
	assert.False(t, PasswordTooLong.OK())
}

func TestValidateHashShape(t *testing.T) {
	assert.True(t, ValidateHashShape(strings.Repeat("$", HashLength)))
	assert.False(t, ValidateHashShape(""))
	assert.False(t, ValidateHashShape(strings.Repeat("a", HashLength-1)))
	assert.False(t, ValidateHashShape(strings.Repeat("a", HashLength+1)))
}

func TestValidateAccountLevel(t *testing.T) {
	levels := domain.DefaultAccountLevels()
	assert.True(t, ValidateAccountLevel(0, levels))
	assert.True(t, ValidateAccountLevel(1, levels))
	assert.False(t, ValidateAccountLevel(2, levels))
}

func TestCheckCredentials(t *testing.T) {
	assert.NoError(t, CheckCredentials("gooduserx", "longenough1"))
	assert.True(t, errors.Is(CheckCredentials("ab", "longenough1"), domain.ErrBadUsername))
	assert.True(t, errors.Is(CheckCredentials("gooduserx", "short"), domain.ErrBadPassword))
}
