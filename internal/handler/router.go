// Package handler provides the HTTP surface for Warden.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/auth"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/pool"
)

// DatastoreChecker reports datastore health.
type DatastoreChecker interface {
	Ping(ctx context.Context) error
	Stats() pool.Stats
}

// defaultMaxBodySize applies when RouterConfig.MaxBodySize is not set.
const defaultMaxBodySize = 1 << 20

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Users     *UserHandler
	Sessions  auth.SessionResolver
	Datastore DatastoreChecker
	Logger    zerolog.Logger

	// MaxBodySize caps request bodies in bytes.
	MaxBodySize int64
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.With().Str("component", "router").Logger()

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = auth.HeaderResolver{}
	}

	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxBody))
	r.Use(auth.Middleware(sessions))

	r.Get("/health", healthHandler(cfg.Datastore))

	cfg.Users.RegisterRoutes(r)

	return r
}

type healthResponse struct {
	Status      string `json:"status"`
	InUse       int64  `json:"inUse"`
	Waiting     int64  `json:"waiting"`
	Connections int    `json:"maxConnections"`
}

func healthHandler(ds DatastoreChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ds == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		stats := ds.Stats()
		resp := healthResponse{
			Status:      "healthy",
			InUse:       stats.InUse,
			Waiting:     stats.Waiting,
			Connections: stats.MaxConnections,
		}

		if err := ds.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Str("category", logging.CategoryDatabase).Err(err).Msg("health check failed")
			resp.Status = "unhealthy"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
