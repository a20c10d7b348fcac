package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/metrics"
)

// SQLAccessor is an Accessor over database/sql. It backs SQLite and MySQL.
type SQLAccessor struct {
	db       *sql.DB
	dialect  Dialect
	gate     *gate
	isUnique func(error) bool
	logger   zerolog.Logger
}

var _ Accessor = (*SQLAccessor)(nil)

func newSQLAccessor(db *sql.DB, dialect Dialect, opts Options, isUnique func(error) bool, logger zerolog.Logger, m *metrics.Metrics) *SQLAccessor {
	g := newGate(opts, m)

	db.SetMaxOpenConns(g.max)
	db.SetMaxIdleConns(g.max)
	db.SetConnMaxIdleTime(opts.IdleTimeout)

	return &SQLAccessor{
		db:       db,
		dialect:  dialect,
		gate:     g,
		isUnique: isUnique,
		logger:   logger,
	}
}

// Acquire implements Accessor.
func (a *SQLAccessor) Acquire(ctx context.Context) (Conn, error) {
	if err := a.gate.enter(ctx); err != nil {
		return nil, err
	}

	c, err := a.db.Conn(ctx)
	if err != nil {
		a.gate.leave()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: checkout: %w", domain.ErrDatastoreUnavailable, err)
	}

	return &sqlConn{conn: c, owner: a}, nil
}

// Dialect implements Accessor.
func (a *SQLAccessor) Dialect() Dialect {
	return a.dialect
}

// Stats implements Accessor.
func (a *SQLAccessor) Stats() Stats {
	s := a.gate.stats()
	s.Idle = int64(a.db.Stats().Idle)
	return s
}

// Ping implements Accessor.
func (a *SQLAccessor) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrDatastoreUnavailable, err)
	}
	return nil
}

// Close implements Accessor.
func (a *SQLAccessor) Close() error {
	a.logger.Info().Str("dialect", string(a.dialect)).Msg("closing connection pool")
	return a.db.Close()
}

// normalize maps a driver error onto the pool's error contract.
func (a *SQLAccessor) normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNoRows
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case a.isUnique(err):
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrDatastoreUnavailable, err)
	}
}

type sqlConn struct {
	conn  *sql.Conn
	owner *SQLAccessor
	once  sync.Once
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.owner.normalize(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.owner.normalize(err)
	}
	return n, nil
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &sqlRow{row: c.conn.QueryRowContext(ctx, query, args...), owner: c.owner}
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.owner.normalize(err)
	}
	return &sqlRows{rows: rows, owner: c.owner}, nil
}

func (c *sqlConn) Release() {
	c.once.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.owner.logger.Warn().Err(err).Msg("failed to return connection")
		}
		c.owner.gate.leave()
	})
}

type sqlRow struct {
	row   *sql.Row
	owner *SQLAccessor
}

func (r *sqlRow) Scan(dest ...any) error {
	return r.owner.normalize(r.row.Scan(dest...))
}

type sqlRows struct {
	rows  *sql.Rows
	owner *SQLAccessor
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest ...any) error { return r.owner.normalize(r.rows.Scan(dest...)) }

func (r *sqlRows) Err() error { return r.owner.normalize(r.rows.Err()) }

func (r *sqlRows) Close() { _ = r.rows.Close() }
