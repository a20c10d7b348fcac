// Package auth attaches the caller's session identity to each request.
// Sessions are issued and managed upstream; this package only reads them.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Session is the identity the upstream session layer vouches for.
type Session struct {
	UserID   int64
	Username string
}

// SessionResolver extracts a Session from a request.
type SessionResolver interface {
	// Resolve returns ErrNoSession when the request carries no identity and
	// ErrMalformedSession when it carries an unusable one.
	Resolve(r *http.Request) (Session, error)
}

// HeaderResolver reads the session from X-Session-User-Id and
// X-Session-Username.
type HeaderResolver struct{}

// Resolve implements SessionResolver.
func (HeaderResolver) Resolve(r *http.Request) (Session, error) {
	rawID := strings.TrimSpace(r.Header.Get(HeaderSessionUserID))
	username := strings.TrimSpace(r.Header.Get(HeaderSessionUsername))

	if rawID == "" && username == "" {
		return Session{}, ErrNoSession
	}
	if rawID == "" || username == "" {
		return Session{}, fmt.Errorf("%w: both %s and %s are required", ErrMalformedSession, HeaderSessionUserID, HeaderSessionUsername)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return Session{}, fmt.Errorf("%w: invalid user id %q", ErrMalformedSession, rawID)
	}

	return Session{UserID: id, Username: username}, nil
}

var _ SessionResolver = HeaderResolver{}

type sessionContextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session attached by Middleware, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok
}
