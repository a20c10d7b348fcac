// Package pool provides bounded, concurrency-safe checkout of datastore
// connections. Every backend (SQLite, MySQL, PostgreSQL) is exposed through
// the same Accessor/Conn contract so the user repository stays dialect-free.
//
// Queries are written with '?' placeholders; the PostgreSQL backend rebinds
// them to $n before sending.
package pool

import (
	"context"
	"errors"
	"time"

	"github.com/prn-tf/warden/internal/config"
)

// Normalised driver errors.
var (
	// ErrNoRows indicates a single-row query matched nothing.
	ErrNoRows = errors.New("no rows in result set")

	// ErrUniqueViolation indicates the datastore rejected a write on a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// Dialect names the SQL flavour behind an Accessor.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Accessor hands out scoped connections.
type Accessor interface {
	// Acquire checks out a connection, waiting while all are busy.
	// Fails with domain.ErrPoolExhausted when the wait queue is full or the
	// acquire timeout elapses. The caller must Release the Conn on every path.
	Acquire(ctx context.Context) (Conn, error)

	// Dialect returns the SQL flavour of the datastore.
	Dialect() Dialect

	// Stats returns a snapshot of pool occupancy.
	Stats() Stats

	// Ping checks that the datastore is reachable.
	Ping(ctx context.Context) error

	// Close closes every connection. Acquire must not be called afterwards.
	Close() error
}

// Conn is a checked-out connection. All query errors are normalised:
// ErrNoRows, ErrUniqueViolation, the caller's context error, or
// domain.ErrDatastoreUnavailable.
type Conn interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// Query runs a query returning any number of rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// Release returns the connection to the pool. Only the first call has
	// an effect.
	Release()
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the result of Query.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	MaxConnections int
	InUse          int64
	Waiting        int64
	Idle           int64
}

// Options controls checkout behaviour common to every backend.
type Options struct {
	// MaxConnections bounds concurrently checked-out connections.
	MaxConnections int

	// IdleTimeout is how long an unused connection may sit before the
	// driver discards it.
	IdleTimeout time.Duration

	// QueueLimit bounds callers waiting for a connection. 0 means unlimited.
	QueueLimit int

	// KeepAlive enables TCP keep-alive on network connections.
	KeepAlive bool

	// AcquireTimeout bounds the wait for a free connection. 0 waits until
	// the caller's context ends.
	AcquireTimeout time.Duration
}

// OptionsFromConfig extracts pool options from the database configuration.
func OptionsFromConfig(cfg config.DatabaseConfig) Options {
	return Options{
		MaxConnections: cfg.MaxConnections,
		IdleTimeout:    cfg.IdleTimeout,
		QueueLimit:     cfg.QueueLimit,
		KeepAlive:      cfg.KeepAlive,
		AcquireTimeout: cfg.AcquireTimeout,
	}
}

// keepAlivePeriod is the TCP keep-alive interval when KeepAlive is on.
const keepAlivePeriod = 30 * time.Second

// dialKeepAlive returns the net.Dialer KeepAlive value for opts.
// A negative value disables keep-alive probes.
func (o Options) dialKeepAlive() time.Duration {
	if o.KeepAlive {
		return keepAlivePeriod
	}
	return -1
}
