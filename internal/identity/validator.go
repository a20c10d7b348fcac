// Package identity holds the stateless shape rules for usernames, passwords
// and stored hashes. Nothing here performs I/O.
package identity

import (
	"regexp"

	"github.com/prn-tf/warden/internal/domain"
)

const (
	// UsernameMinLength is exclusive: a username must be longer than this.
	UsernameMinLength = 8

	// UsernameMaxLength is inclusive.
	UsernameMaxLength = 30

	// PasswordMinLength is the minimum password length.
	PasswordMinLength = 8

	// PasswordMaxBytes is the largest input bcrypt accepts.
	PasswordMaxBytes = 72

	// HashLength is the width of a bcrypt hash string.
	HashLength = 60
)

var usernamePattern = regexp.MustCompile(`(?i)^[a-z._]+$`)

// ValidateUsername reports whether s is an acceptable username.
func ValidateUsername(s string) bool {
	return len(s) > UsernameMinLength &&
		len(s) <= UsernameMaxLength &&
		usernamePattern.MatchString(s)
}

// PasswordResult is the outcome of a password shape check.
type PasswordResult int

const (
	PasswordOK PasswordResult = iota
	PasswordTooShort
	PasswordTooLong
)

// String implements fmt.Stringer.
func (r PasswordResult) String() string {
	switch r {
	case PasswordOK:
		return "OK"
	case PasswordTooShort:
		return "MIN_LENGTH"
	case PasswordTooLong:
		return "MAX_LENGTH"
	default:
		return "UNKNOWN"
	}
}

// OK reports whether the password passed.
func (r PasswordResult) OK() bool {
	return r == PasswordOK
}

// ValidatePassword checks a plaintext password and returns the specific
// reason it was rejected.
func ValidatePassword(s string) PasswordResult {
	if len(s) < PasswordMinLength {
		return PasswordTooShort
	}
	if len(s) > PasswordMaxBytes {
		return PasswordTooLong
	}
	return PasswordOK
}

// ValidateHashShape reports whether h has the fixed width of a stored hash.
// This is a shape check only.
func ValidateHashShape(h string) bool {
	return len(h) == HashLength
}

// ValidateAccountLevel reports whether level is one of the defined values.
func ValidateAccountLevel(level domain.AccountLevel, levels domain.AccountLevels) bool {
	return levels.Contains(level)
}

// CheckCredentials validates a username/password pair and returns the
// matching domain error, or nil.
func CheckCredentials(username, password string) error {
	if !ValidateUsername(username) {
		return domain.NewDomainError(domain.ErrBadUsername, "", username)
	}
	if r := ValidatePassword(password); !r.OK() {
		return domain.NewDomainError(domain.ErrBadPassword, r.String(), username)
	}
	return nil
}
