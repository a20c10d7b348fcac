package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/auth"
	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/repository"
	"github.com/prn-tf/warden/internal/service"
)

// AccountManager is the account surface used by UserHandler.
type AccountManager interface {
	Register(ctx context.Context, input service.RegisterInput) (repository.User, error)
	List(ctx context.Context) ([]repository.User, error)
	Get(ctx context.Context, id int64) (repository.User, error)
	DeleteByUsername(ctx context.Context, username string) (int64, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	SetAccountLevel(ctx context.Context, id int64, level domain.AccountLevel) (repository.User, error)
}

// Authenticator decides login success.
type Authenticator interface {
	Authenticate(ctx context.Context, username, plaintext string) (service.AuthResult, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// Authorizer decides administrator and self access.
type Authorizer interface {
	IsAdministrator(ctx context.Context, userID int64, username string) bool
	IsSelfOrAdmin(ctx context.Context, sessionUserID int64, sessionUsername string, pathUserID int64) bool
}

// UserHandler serves /api/v1/users.
type UserHandler struct {
	accounts AccountManager
	authn    Authenticator
	authz    Authorizer
	levels   domain.AccountLevels
	logger   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accounts AccountManager, authn Authenticator, authz Authorizer, levels domain.AccountLevels, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		authn:    authn,
		authz:    authz,
		levels:   levels,
		logger:   logger.With().Str("handler", "users").Logger(),
	}
}

// RegisterRoutes registers user routes.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Post("/authenticate", h.handleAuthenticate)
		r.With(h.requireAdmin).Get("/", h.handleList)
		r.With(h.requireAdmin).Delete("/", h.handleDeleteByUsername)

		r.Route("/{userId}", func(r chi.Router) {
			r.With(h.requireSelfOrAdmin).Get("/", h.handleGet)
			r.With(h.requireAdmin).Delete("/", h.handleDeleteByID)
			r.With(h.requireSelf).Put("/password", h.handleChangePassword)
			r.With(h.requireAdmin).Put("/level", h.handleSetLevel)
		})
	})
}

// UserResponse is the public shape of a user. It has no password field.
type UserResponse struct {
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	AccountLevel int16  `json:"accountLevel"`
}

func toResponse(u repository.User) UserResponse {
	return UserResponse{
		UserID:       u.ID(),
		Username:     u.Username(),
		AccountLevel: int16(u.AccountLevel()),
	}
}

type createUserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AccountLevel *int16 `json:"accountLevel,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authenticateResponse struct {
	Success bool          `json:"success"`
	User    *UserResponse `json:"user,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type setLevelRequest struct {
	AccountLevel *int16 `json:"accountLevel"`
}

type deleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// =============================================================================
// Handlers
// =============================================================================

func (h *UserHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}

	input := service.RegisterInput{Username: req.Username, Password: req.Password}
	if req.AccountLevel != nil {
		level := domain.AccountLevel(*req.AccountLevel)
		// Only administrators may create accounts above the standard level.
		if level != h.levels.Standard && !h.sessionIsAdmin(r) {
			writeError(w, http.StatusForbidden, codeForbidden, "administrator required to set account level")
			return
		}
		input.Level = &level
	}

	user, err := h.accounts.Register(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(user))
}

func (h *UserHandler) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if !res.Success {
		writeJSON(w, http.StatusUnauthorized, authenticateResponse{Success: false})
		return
	}

	user := toResponse(*res.User)
	writeJSON(w, http.StatusOK, authenticateResponse{Success: true, User: &user})
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	user, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(user))
}

func (h *UserHandler) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	n, err := h.accounts.DeleteByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (h *UserHandler) handleDeleteByUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "username query parameter is required")
		return
	}

	n, err := h.accounts.DeleteByUsername(r.Context(), username)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	err := h.authn.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	default:
		writeDomainError(w, r, err)
	}
}

func (h *UserHandler) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
		return
	}

	var req setLevelRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AccountLevel == nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "accountLevel is required")
		return
	}

	user, err := h.accounts.SetAccountLevel(r.Context(), id, domain.AccountLevel(*req.AccountLevel))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(user))
}

// =============================================================================
// Access checks
// =============================================================================

func (h *UserHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "session required")
			return
		}
		if !h.authz.IsAdministrator(r.Context(), s.UserID, s.Username) {
			writeError(w, http.StatusForbidden, codeForbidden, "administrator required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *UserHandler) requireSelfOrAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "session required")
			return
		}
		id, ok := pathUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
			return
		}
		if !h.authz.IsSelfOrAdmin(r.Context(), s.UserID, s.Username, id) {
			writeError(w, http.StatusForbidden, codeForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *UserHandler) requireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "session required")
			return
		}
		id, ok := pathUserID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, codeBadRequest, "invalid user id")
			return
		}
		if s.UserID != id {
			h.logger.Warn().
				Str("category", logging.CategoryAuthorization).
				Int64("user_id", s.UserID).
				Int64("target_user_id", id).
				Msg("self access denied")
			writeError(w, http.StatusForbidden, codeForbidden, "access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *UserHandler) sessionIsAdmin(r *http.Request) bool {
	s, ok := auth.FromContext(r.Context())
	return ok && h.authz.IsAdministrator(r.Context(), s.UserID, s.Username)
}

// =============================================================================
// Helpers
// =============================================================================

func pathUserID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decode reads a JSON body. The size cap is applied by the router.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return false
	}
	return true
}
