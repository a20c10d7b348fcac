package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/domain"
	"github.com/prn-tf/warden/internal/metrics"
)

const pgUniqueViolation = "23505"

// PostgresAccessor is an Accessor over a pgx connection pool.
type PostgresAccessor struct {
	pool   *pgxpool.Pool
	gate   *gate
	logger zerolog.Logger
}

var _ Accessor = (*PostgresAccessor)(nil)

// OpenPostgres opens a PostgreSQL datastore.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger, m *metrics.Metrics) (*PostgresAccessor, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	opts := OptionsFromConfig(cfg)
	g := newGate(opts, m)

	poolConfig.MaxConns = int32(g.max)
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = opts.IdleTimeout

	poolConfig.ConnConfig.ConnectTimeout = 10 * time.Second
	poolConfig.ConnConfig.DialFunc = (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: opts.dialKeepAlive(),
	}).DialContext

	if logger.GetLevel() <= zerolog.DebugLevel {
		poolConfig.ConnConfig.Tracer = &queryTracer{logger: logger}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Int("max_conns", g.max).
		Bool("keep_alive", opts.KeepAlive).
		Msg("connected to PostgreSQL")

	return &PostgresAccessor{pool: pool, gate: g, logger: logger}, nil
}

// Acquire implements Accessor.
func (a *PostgresAccessor) Acquire(ctx context.Context) (Conn, error) {
	if err := a.gate.enter(ctx); err != nil {
		return nil, err
	}

	c, err := a.pool.Acquire(ctx)
	if err != nil {
		a.gate.leave()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: checkout: %w", domain.ErrDatastoreUnavailable, err)
	}

	return &pgConn{conn: c, owner: a}, nil
}

// Dialect implements Accessor.
func (a *PostgresAccessor) Dialect() Dialect {
	return DialectPostgres
}

// Stats implements Accessor.
func (a *PostgresAccessor) Stats() Stats {
	s := a.gate.stats()
	s.Idle = int64(a.pool.Stat().IdleConns())
	return s
}

// Ping implements Accessor.
func (a *PostgresAccessor) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrDatastoreUnavailable, err)
	}
	return nil
}

// Close implements Accessor.
func (a *PostgresAccessor) Close() error {
	a.pool.Close()
	a.logger.Info().Msg("database connection pool closed")
	return nil
}

func normalizePg(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNoRows
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	default:
		return fmt.Errorf("%w: %w", domain.ErrDatastoreUnavailable, err)
	}
}

// rebind rewrites '?' placeholders to PostgreSQL's $n form.
func rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type pgConn struct {
	conn  *pgxpool.Conn
	owner *PostgresAccessor
	once  sync.Once
}

func (c *pgConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, rebind(query), args...)
	if err != nil {
		return 0, normalizePg(err)
	}
	return tag.RowsAffected(), nil
}

func (c *pgConn) QueryRow(ctx context.Context, query string, args ...any) Row {
	return &pgRow{row: c.conn.QueryRow(ctx, rebind(query), args...)}
}

func (c *pgConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, normalizePg(err)
	}
	return &pgRows{rows: rows}, nil
}

func (c *pgConn) Release() {
	c.once.Do(func() {
		c.conn.Release()
		c.owner.gate.leave()
	})
}

type pgRow struct {
	row pgx.Row
}

func (r *pgRow) Scan(dest ...any) error { return normalizePg(r.row.Scan(dest...)) }

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool { return r.rows.Next() }

func (r *pgRows) Scan(dest ...any) error { return normalizePg(r.rows.Scan(dest...)) }

func (r *pgRows) Err() error { return normalizePg(r.rows.Err()) }

func (r *pgRows) Close() { r.rows.Close() }

// queryTracer implements pgx.QueryTracer for debug logging.
type queryTracer struct {
	logger zerolog.Logger
}

type traceQueryCtxKey struct{}

type traceQueryData struct {
	sql       string
	startTime time.Time
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceQueryCtxKey{}, &traceQueryData{
		sql:       data.SQL,
		startTime: time.Now(),
	})
}

// TraceQueryEnd logs the statement without its arguments; they may carry
// password hashes.
func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	queryData, ok := ctx.Value(traceQueryCtxKey{}).(*traceQueryData)
	if !ok {
		return
	}

	event := t.logger.Debug().
		Str("sql", queryData.sql).
		Dur("duration", time.Since(queryData.startTime)).
		Str("command_tag", data.CommandTag.String())

	if data.Err != nil {
		event.Err(data.Err)
	}

	event.Msg("query executed")
}
