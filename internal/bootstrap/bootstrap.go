// Package bootstrap wires the core components from configuration. It is
// shared by the server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/lock"
	"github.com/prn-tf/warden/internal/metrics"
	"github.com/prn-tf/warden/internal/pkg/crypto"
	"github.com/prn-tf/warden/internal/pool"
	"github.com/prn-tf/warden/internal/repository"
	"github.com/prn-tf/warden/internal/service"
)

// Core holds the wired components.
type Core struct {
	Pool     pool.Accessor
	Migrator *repository.Migrator
	Users    repository.UserRepository
	Levels   domain.AccountLevels
	Metrics  *metrics.Metrics
	Locker   lock.Locker

	Accounts *service.AccountService
	Auth     *service.AuthService
	Authz    *service.AuthzService
}

// Options tweaks what Open does beyond wiring.
type Options struct {
	// Registerer receives the core's metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Migrate applies pending schema migrations after connecting.
	Migrate bool
}

// AccountLevels converts the configured level tags.
func AccountLevels(cfg config.AuthConfig) domain.AccountLevels {
	return domain.AccountLevels{
		Standard:      domain.AccountLevel(cfg.StandardAccountLevel),
		Administrator: domain.AccountLevel(cfg.AdminAccountLevel),
	}
}

// Open connects to the datastore and builds every core component.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Core, error) {
	var m *metrics.Metrics
	if opts.Registerer != nil {
		m = metrics.New(opts.Registerer)
	}

	p, err := pool.Open(ctx, cfg.Database, logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to open datastore: %w", err)
	}

	migrator := repository.NewMigrator(p, logger)
	if opts.Migrate {
		if _, err := migrator.Up(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}

	var locker lock.Locker
	if cfg.Redis.Enabled {
		rl, err := lock.NewRedisLocker(ctx, cfg.Redis)
		if err != nil {
			p.Close()
			return nil, err
		}
		locker = rl
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using redis install lock")
	} else {
		locker = lock.NewMemoryLocker()
	}

	levels := AccountLevels(cfg.Auth)
	hasher := crypto.NewBcryptHasher(crypto.HasherConfig{MaxConcurrent: cfg.Hasher.MaxConcurrent}, logger, m)
	users := repository.NewUserRepository(p, hasher, levels, logger, m)

	authn, err := service.NewAuthService(ctx, users, hasher, logger, m)
	if err != nil {
		_ = locker.Close()
		p.Close()
		return nil, fmt.Errorf("failed to prepare authentication: %w", err)
	}

	return &Core{
		Pool:     p,
		Migrator: migrator,
		Users:    users,
		Levels:   levels,
		Metrics:  m,
		Locker:   locker,
		Accounts: service.NewAccountService(users, levels, locker, cfg.Lock, logger),
		Auth:     authn,
		Authz:    service.NewAuthzService(users, levels, logger, m),
	}, nil
}

// Close releases the lock backend and the datastore.
func (c *Core) Close() error {
	if err := c.Locker.Close(); err != nil {
		_ = c.Pool.Close()
		return err
	}
	return c.Pool.Close()
}
