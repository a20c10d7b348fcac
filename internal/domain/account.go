// Package domain contains the core business types for Warden.
// These are plain Go values with no external dependencies: account levels,
// the error taxonomy and the error codes surfaced to callers.
package domain

import "strconv"

// AccountLevel is the small integer tag stored with every user row.
// The values that mean "standard" and "administrator" are configured at
// startup; the defaults match the original schema's TINYINT(1) column.
type AccountLevel int16

const (
	// DefaultStandardLevel is the default tag for ordinary accounts.
	DefaultStandardLevel AccountLevel = 0

	// DefaultAdministratorLevel is the default tag for elevated accounts.
	DefaultAdministratorLevel AccountLevel = 1
)

// String implements fmt.Stringer.
func (l AccountLevel) String() string {
	return strconv.Itoa(int(l))
}

// AccountLevels is the enumeration of account levels accepted by the
// repository. It is built once from configuration and never mutated.
type AccountLevels struct {
	// Standard is the tag for ordinary accounts.
	Standard AccountLevel

	// Administrator is the tag that grants elevated privileges.
	Administrator AccountLevel
}

// DefaultAccountLevels returns the default enumeration.
func DefaultAccountLevels() AccountLevels {
	return AccountLevels{
		Standard:      DefaultStandardLevel,
		Administrator: DefaultAdministratorLevel,
	}
}

// Contains reports whether level is one of the defined values.
func (a AccountLevels) Contains(level AccountLevel) bool {
	return level == a.Standard || level == a.Administrator
}

// IsAdministrator reports whether level is the administrator tag.
func (a AccountLevels) IsAdministrator(level AccountLevel) bool {
	return level == a.Administrator
}
