package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/domain"
)

// Codes produced by the HTTP layer itself.
const (
	codeBadRequest      = "BAD_REQUEST"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, ErrorCode: code})
}

// writeDomainError maps err to a status and its error code. Server-side
// failures are logged and their detail withheld from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("error_code", string(code)).Msg("request failed")
		message = http.StatusText(status)
	}

	writeError(w, status, string(code), message)
}

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeBadUser, domain.CodeBadPassword, domain.CodeBadAccountLevel:
		return http.StatusBadRequest
	case domain.CodeDuplicateUsername:
		return http.StatusConflict
	case domain.CodeRecordNotFound:
		return http.StatusNotFound
	case domain.CodePoolExhausted, domain.CodeDatastoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
