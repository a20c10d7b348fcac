package auth

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/logging"
)

// Middleware resolves the session for every request and stores it in the
// request context. Requests without a session pass through unchanged;
// route-level checks decide whether one is required. Malformed sessions are
// dropped and logged.
func Middleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := resolver.Resolve(r)
			switch {
			case err == nil:
				r = r.WithContext(WithSession(r.Context(), s))
			case errors.Is(err, ErrNoSession):
			default:
				zerolog.Ctx(r.Context()).Warn().
					Str("category", logging.CategoryAuthorization).
					Err(err).
					Msg("ignoring malformed session")
			}
			next.ServeHTTP(w, r)
		})
	}
}
