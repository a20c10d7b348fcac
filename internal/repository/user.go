package repository

import "github.com/prn-tf/warden/internal/domain"

// User is an immutable view of one account row. It never carries the stored
// password hash. Values are only constructed by this package.
type User struct {
	id       int64
	username string
	level    domain.AccountLevel
}

func newUser(id int64, username string, level domain.AccountLevel) User {
	return User{id: id, username: username, level: level}
}

// ID returns the datastore-assigned identifier.
func (u User) ID() int64 { return u.id }

// Username returns the account's unique username.
func (u User) Username() string { return u.username }

// AccountLevel returns the account's level tag.
func (u User) AccountLevel() domain.AccountLevel { return u.level }

// IsZero reports whether u is the zero User.
func (u User) IsZero() bool { return u.id == 0 && u.username == "" }

// Credential pairs a User with its stored password hash. It is returned only
// by UserRepository.FindByUsername, for authentication.
type Credential struct {
	user User
	hash string
}

// User returns the account without the hash.
func (c Credential) User() User { return c.user }

// HashedPassword returns the stored hash.
func (c Credential) HashedPassword() string { return c.hash }
