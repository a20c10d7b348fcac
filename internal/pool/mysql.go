package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/metrics"
)

const (
	mysqlDuplicateEntry = 1062

	mysqlNetKeepAlive   = "tcp+keepalive"
	mysqlNetNoKeepAlive = "tcp+nokeepalive"
)

var registerMySQLDialers sync.Once

// OpenMySQL opens a MySQL datastore through go-sql-driver/mysql.
func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger, m *metrics.Metrics) (*SQLAccessor, error) {
	opts := OptionsFromConfig(cfg)

	registerMySQLDialers.Do(func() {
		mysql.RegisterDialContext(mysqlNetKeepAlive, dialer(keepAlivePeriod))
		mysql.RegisterDialContext(mysqlNetNoKeepAlive, dialer(-1))
	})

	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mcfg := mysql.NewConfig()
	mcfg.User = cfg.User
	mcfg.Passwd = cfg.Password
	mcfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mcfg.DBName = cfg.Database
	mcfg.ParseTime = true
	// Report matched rather than changed rows so an UPDATE to the current
	// value still counts as a hit.
	mcfg.ClientFoundRows = true
	mcfg.Net = mysqlNetNoKeepAlive
	if opts.KeepAlive {
		mcfg.Net = mysqlNetKeepAlive
	}

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL config: %w", err)
	}
	db := sql.OpenDB(connector)

	a := newSQLAccessor(db, DialectMySQL, opts, isMySQLUniqueViolation, logger, m)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	logger.Info().
		Str("addr", mcfg.Addr).
		Str("database", cfg.Database).
		Int("max_conns", a.gate.max).
		Bool("keep_alive", opts.KeepAlive).
		Msg("connected to MySQL")

	return a, nil
}

func dialer(keepAlive time.Duration) mysql.DialContextFunc {
	d := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: keepAlive}
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
}

func isMySQLUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
