package auth

import "errors"

// Session errors.
var (
	// ErrNoSession indicates the request carries no session identity.
	ErrNoSession = errors.New("no session")

	// ErrMalformedSession indicates session headers are present but unusable.
	ErrMalformedSession = errors.New("malformed session")
)
