package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/warden/internal/pool"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

const (
	queryCreateMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER     NOT NULL PRIMARY KEY,
		applied_at VARCHAR(40) NOT NULL
	)`
	queryCurrentVersion  = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`
	queryRecordMigration = `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`
)

// Migration is one embedded schema step.
type Migration struct {
	Version int
	Name    string
}

// MigrationStatus reports the applied version and the steps still pending.
type MigrationStatus struct {
	Current int
	Latest  int
	Pending []Migration
}

// Migrator applies the embedded schema for the accessor's dialect.
type Migrator struct {
	pool   pool.Accessor
	logger zerolog.Logger
}

// NewMigrator creates a new Migrator.
func NewMigrator(p pool.Accessor, logger zerolog.Logger) *Migrator {
	return &Migrator{
		pool:   p,
		logger: logger.With().Str("service", "migrator").Str("dialect", string(p.Dialect())).Logger(),
	}
}

// Migrations lists the embedded steps for the accessor's dialect, in order.
func (m *Migrator) Migrations() ([]Migration, error) {
	dir := path.Join("migrations", string(m.pool.Dialect()))
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", m.pool.Dialect(), err)
	}

	var out []Migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("malformed migration name %q", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("malformed migration version %q: %w", name, err)
		}
		out = append(out, Migration{Version: v, Name: name})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Status returns the current schema version and pending migrations.
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	all, err := m.Migrations()
	if err != nil {
		return MigrationStatus{}, err
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer conn.Release()

	current, err := currentVersion(ctx, conn)
	if err != nil {
		return MigrationStatus{}, err
	}

	status := MigrationStatus{Current: current}
	for _, mig := range all {
		if mig.Version > status.Latest {
			status.Latest = mig.Version
		}
		if mig.Version > current {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	m.logger.Info().Int("current_version", status.Current).Int("pending", len(status.Pending)).Msg("checking migrations")

	if len(status.Pending) == 0 {
		return 0, nil
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	dir := path.Join("migrations", string(m.pool.Dialect()))
	for i, mig := range status.Pending {
		body, err := migrationsFS.ReadFile(path.Join(dir, mig.Name))
		if err != nil {
			return i, fmt.Errorf("failed to read migration %d: %w", mig.Version, err)
		}

		for _, stmt := range splitStatements(string(body)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return i, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
			}
		}

		if _, err := conn.Exec(ctx, queryRecordMigration, mig.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return i, fmt.Errorf("failed to record migration %d: %w", mig.Version, err)
		}

		m.logger.Info().Int("version", mig.Version).Str("file", mig.Name).Msg("applied migration")
	}

	return len(status.Pending), nil
}

func currentVersion(ctx context.Context, conn pool.Conn) (int, error) {
	if _, err := conn.Exec(ctx, queryCreateMigrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var v int
	if err := conn.QueryRow(ctx, queryCurrentVersion).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return v, nil
}

// splitStatements splits a migration body on ';'. The MySQL driver rejects
// multi-statement Exec by default.
func splitStatements(body string) []string {
	var out []string
	for _, s := range strings.Split(body, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
