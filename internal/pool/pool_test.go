package pool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/domain"
)

func openTestSQLite(t *testing.T, maxConns, queueLimit int, timeout time.Duration) *SQLAccessor {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "pool.db"),
		MaxConnections: maxConns,
		QueueLimit:     queueLimit,
		AcquireTimeout: timeout,
		IdleTimeout:    time.Minute,
	}

	a, err := OpenSQLite(context.Background(), cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAcquire_WithinLimit(t *testing.T) {
	a := openTestSQLite(t, 2, 0, time.Second)
	ctx := context.Background()

	c1, err := a.Acquire(ctx)
	require.NoError(t, err)
	c2, err := a.Acquire(ctx)
	require.NoError(t, err)

	stats := a.Stats()
	assert.Equal(t, 2, stats.MaxConnections)
	assert.Equal(t, int64(2), stats.InUse)

	c1.Release()
	c2.Release()
	assert.Equal(t, int64(0), a.Stats().InUse)
	assert.Equal(t, DialectSQLite, a.Dialect())
}

func TestAcquire_TimesOutWhenExhausted(t *testing.T) {
	a := openTestSQLite(t, 2, 0, 50*time.Millisecond)
	ctx := context.Background()

	c1, err := a.Acquire(ctx)
	require.NoError(t, err)
	c2, err := a.Acquire(ctx)
	require.NoError(t, err)

	_, err = a.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	assert.Equal(t, domain.CodePoolExhausted, domain.CodeOf(err))

	c1.Release()

	c3, err := a.Acquire(ctx)
	require.NoError(t, err)
	c3.Release()
	c2.Release()
}

func TestAcquire_WaiterProceedsAfterRelease(t *testing.T) {
	a := openTestSQLite(t, 1, 0, 5*time.Second)
	ctx := context.Background()

	held, err := a.Acquire(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		c, err := a.Acquire(ctx)
		if err == nil {
			c.Release()
		}
		done <- err
	}()

	require.Eventually(t, func() bool { return a.Stats().Waiting == 1 }, time.Second, 5*time.Millisecond)
	held.Release()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not admitted after release")
	}
}

func TestAcquire_QueueLimit(t *testing.T) {
	a := openTestSQLite(t, 1, 1, 5*time.Second)
	ctx := context.Background()

	held, err := a.Acquire(ctx)
	require.NoError(t, err)

	waiterCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	waiterDone := make(chan error, 1)
	go func() {
		c, err := a.Acquire(waiterCtx)
		if err == nil {
			c.Release()
		}
		waiterDone <- err
	}()
	require.Eventually(t, func() bool { return a.Stats().Waiting == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	_, err = a.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	assert.Less(t, time.Since(start), time.Second)

	cancel()
	assert.ErrorIs(t, <-waiterDone, context.Canceled)
	held.Release()
}

func TestAcquire_ContextCanceledWhileWaiting(t *testing.T) {
	a := openTestSQLite(t, 1, 0, 5*time.Second)

	held, err := a.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = a.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrPoolExhausted)
}

func TestRelease_Idempotent(t *testing.T) {
	a := openTestSQLite(t, 1, 0, 50*time.Millisecond)
	ctx := context.Background()

	c, err := a.Acquire(ctx)
	require.NoError(t, err)
	c.Release()
	c.Release()

	assert.Equal(t, int64(0), a.Stats().InUse)

	c1, err := a.Acquire(ctx)
	require.NoError(t, err)
	_, err = a.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	c1.Release()
}

func TestConn_NormalizesErrors(t *testing.T) {
	a := openTestSQLite(t, 1, 0, time.Second)
	ctx := context.Background()

	c, err := a.Acquire(ctx)
	require.NoError(t, err)
	defer c.Release()

	_, err = c.Exec(ctx, `CREATE TABLE t (name TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)

	n, err := c.Exec(ctx, `INSERT INTO t (name) VALUES (?)`, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.Exec(ctx, `INSERT INTO t (name) VALUES (?)`, "alpha")
	assert.ErrorIs(t, err, ErrUniqueViolation)

	var name string
	err = c.QueryRow(ctx, `SELECT name FROM t WHERE name = ?`, "beta").Scan(&name)
	assert.ErrorIs(t, err, ErrNoRows)

	_, err = c.Exec(ctx, `INSERT INTO missing (x) VALUES (1)`)
	assert.ErrorIs(t, err, domain.ErrDatastoreUnavailable)

	rows, err := c.Query(ctx, `SELECT name FROM t`)
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	rows.Close()
	assert.Equal(t, []string{"alpha"}, names)
}

func TestOpenSQLite_InMemorySharesOneDatabase(t *testing.T) {
	ctx := context.Background()
	a, err := OpenSQLite(ctx, config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		Path:           ":memory:",
		MaxConnections: 2,
		AcquireTimeout: 50 * time.Millisecond,
		IdleTimeout:    time.Millisecond,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 1, a.Stats().MaxConnections)

	c1, err := a.Acquire(ctx)
	require.NoError(t, err)
	_, err = c1.Exec(ctx, `CREATE TABLE t (name TEXT NOT NULL)`)
	require.NoError(t, err)

	// A second checkout waits for the only connection instead of opening an
	// empty database.
	_, err = a.Acquire(ctx)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	c1.Release()

	time.Sleep(10 * time.Millisecond)

	c2, err := a.Acquire(ctx)
	require.NoError(t, err)
	defer c2.Release()

	n, err := c2.Exec(ctx, `INSERT INTO t (name) VALUES (?)`, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop(), nil)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM users WHERE user_id = ?", "SELECT * FROM users WHERE user_id = $1"},
		{"UPDATE users SET a = ?, b = ? WHERE c = ?", "UPDATE users SET a = $1, b = $2 WHERE c = $3"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, rebind(tt.in))
	}
}

func TestUniqueViolationDetection(t *testing.T) {
	assert.True(t, isMySQLUniqueViolation(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, isMySQLUniqueViolation(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isMySQLUniqueViolation(errors.New("boom")))

	assert.ErrorIs(t, normalizePg(&pgconn.PgError{Code: "23505"}), ErrUniqueViolation)
	assert.ErrorIs(t, normalizePg(&pgconn.PgError{Code: "42P01"}), domain.ErrDatastoreUnavailable)
	assert.ErrorIs(t, normalizePg(context.Canceled), context.Canceled)
	assert.NoError(t, normalizePg(nil))

	assert.True(t, isSQLiteUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.username")))
}
