package pool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/logging"
	"github.com/prn-tf/warden/internal/metrics"
)

// Open creates the Accessor selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger, m *metrics.Metrics) (Accessor, error) {
	logger = logger.With().Str("category", logging.CategoryDatabase).Str("driver", cfg.Driver).Logger()

	var (
		a   Accessor
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		a, err = OpenSQLite(ctx, cfg, logger, m)
	case config.DriverMySQL:
		a, err = OpenMySQL(ctx, cfg, logger, m)
	case config.DriverPostgres:
		a, err = OpenPostgres(ctx, cfg, logger, m)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
