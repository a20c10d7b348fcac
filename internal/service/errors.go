// Package service provides the authentication, authorization and account
// services for Warden.
package service

import "errors"

// Common service errors.
var (
	// ErrInvalidCredentials is returned by operations that require the
	// caller to prove the current password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAlreadyInstalled is returned by Install when users already exist.
	ErrAlreadyInstalled = errors.New("users already exist")

	// ErrInstallInProgress is returned by Install when another install holds
	// the install lock for longer than the configured wait.
	ErrInstallInProgress = errors.New("another install is in progress")
)
