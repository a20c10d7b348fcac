package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/warden/internal/config"
	"github.com/prn-tf/warden/internal/pool"
)

func TestMigrator_UpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, err := pool.OpenSQLite(ctx, config.DatabaseConfig{
		Driver:         config.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "migrate.db"),
		MaxConnections: 1,
		AcquireTimeout: time.Second,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer p.Close()

	m := NewMigrator(p, zerolog.Nop())

	all, err := m.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)

	before, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Current)
	assert.Len(t, before.Pending, len(all))

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(all), applied)

	applied, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	after, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, after.Latest, after.Current)
	assert.Empty(t, after.Pending)
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE TABLE b (y INT)"}, got)
}
