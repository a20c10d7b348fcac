package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/metrics"
)

// sqliteMemoryPath selects a private in-memory database.
const sqliteMemoryPath = ":memory:"

// OpenSQLite opens an embedded SQLite datastore using modernc.org/sqlite,
// which needs no CGO.
//
// An in-memory database exists only inside the connection that created it,
// so for ":memory:" the pool is limited to one connection that never idles
// out.
func OpenSQLite(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger, m *metrics.Metrics) (*SQLAccessor, error) {
	inMemory := cfg.Path == sqliteMemoryPath
	if !inMemory {
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	journal := cfg.JournalMode
	if journal == "" {
		journal = "WAL"
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5000
	}

	dsn := fmt.Sprintf(
		"%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		cfg.Path, busy, journal,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	opts := OptionsFromConfig(cfg)
	if inMemory {
		if opts.MaxConnections > 1 {
			logger.Warn().
				Int("max_connections", opts.MaxConnections).
				Msg("in-memory SQLite is private to one connection; limiting pool to 1")
		}
		opts.MaxConnections = 1
		opts.IdleTimeout = 0
	}
	a := newSQLAccessor(db, DialectSQLite, opts, isSQLiteUniqueViolation, logger, m)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Str("journal_mode", journal).
		Int("max_conns", a.gate.max).
		Int("queue_limit", opts.QueueLimit).
		Msg("connected to SQLite database")

	return a, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed: UNIQUE")
}
