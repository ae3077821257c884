// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/danielhkuo/ibis/db/migrations"
)

const migrationTable = "schema_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

var (
	ErrInvalidMigration = errors.New("invalid migration")
	ErrNoDownMigration  = errors.New("migration has no down section")
)

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.sql$`)

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// LoadMigrations reads the embedded migrations for a dialect, sorted by version.
func LoadMigrations(dialect Dialect) ([]Migration, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}
	return loadMigrations(migrations.FS, string(dialect))
}

func loadMigrations(fsys fs.FS, root string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var result []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m := migrationName.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("%w: bad file name %s", ErrInvalidMigration, entry.Name())
		}
		version, err := strconv.Atoi(m[1])
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("%w: bad version in %s", ErrInvalidMigration, entry.Name())
		}
		if other, ok := seen[version]; ok {
			return nil, fmt.Errorf("%w: version %d used by %s and %s", ErrInvalidMigration, version, other, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, path.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		up := ExtractUpMigration(string(content))
		if strings.TrimSpace(up) == "" {
			return nil, fmt.Errorf("%w: %s has an empty up section", ErrInvalidMigration, entry.Name())
		}
		result = append(result, Migration{
			Version: version,
			Name:    m[2],
			Up:      up,
			Down:    ExtractDownMigration(string(content)),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	for i, mig := range result {
		if mig.Version != i+1 {
			return nil, fmt.Errorf("%w: expected version %d, found %d", ErrInvalidMigration, i+1, mig.Version)
		}
	}
	return result, nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, downMarker)
	if downIdx == -1 || downIdx < upIdx {
		return content[upIdx+len(upMarker):]
	}
	return content[upIdx+len(upMarker) : downIdx]
}

// ExtractDownMigration returns the SQL in the -- +migrate Down section, or ""
func ExtractDownMigration(content string) string {
	downIdx := strings.Index(content, downMarker)
	if downIdx == -1 {
		return ""
	}
	down := content[downIdx+len(downMarker):]
	if upIdx := strings.Index(down, upMarker); upIdx != -1 {
		down = down[:upIdx]
	}
	return down
}

// Migrator applies and reverts migrations, recording them in schema_migrations
type Migrator struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration
}

// NewMigrator loads the dialect's migrations
func NewMigrator(conn *sql.DB, dialect Dialect) (*Migrator, error) {
	if conn == nil {
		return nil, errors.New("sql db is required")
	}
	list, err := LoadMigrations(dialect)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: conn, dialect: dialect, migrations: list}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM "+migrationTable)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt int64
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		result[version] = time.UnixMilli(appliedAt).UTC()
	}
	return result, rows.Err()
}

// Up applies every pending migration in version order and returns how many ran.
// Each migration runs in its own transaction together with its bookkeeping row.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		if err := m.run(ctx, mig, mig.Up, true); err != nil {
			return count, err
		}
		slog.Info("migration applied", "version", mig.Version, "name", mig.Name, "dialect", m.dialect)
		count++
	}
	return count, nil
}

// Down reverts the most recently applied migrations, newest first.
func (m *Migrator) Down(ctx context.Context, steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0 && count < steps; i-- {
		mig := m.migrations[i]
		if _, ok := done[mig.Version]; !ok {
			continue
		}
		if strings.TrimSpace(mig.Down) == "" {
			return count, fmt.Errorf("revert %04d_%s: %w", mig.Version, mig.Name, ErrNoDownMigration)
		}
		if err := m.run(ctx, mig, mig.Down, false); err != nil {
			return count, err
		}
		slog.Info("migration reverted", "version", mig.Version, "name", mig.Name, "dialect", m.dialect)
		count++
	}
	return count, nil
}

func (m *Migrator) run(ctx context.Context, mig Migration, script string, up bool) error {
	direction := "apply"
	if !up {
		direction = "revert"
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s %04d_%s: %w", direction, mig.Version, mig.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("%s %04d_%s: %w", direction, mig.Version, mig.Name, err)
	}

	if up {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO "+migrationTable+" (version, name, applied_at) VALUES ($1, $2, $3)",
			mig.Version, mig.Name, time.Now().UTC().UnixMilli())
	} else {
		_, err = tx.ExecContext(ctx, "DELETE FROM "+migrationTable+" WHERE version = $1", mig.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s %04d_%s: %w", direction, mig.Version, mig.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s %04d_%s: %w", direction, mig.Version, mig.Name, err)
	}
	return nil
}

// Status lists every known migration with its applied state
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if at, ok := done[mig.Version]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		result = append(result, st)
	}
	return result, nil
}

// Version returns the highest applied version, 0 when nothing is applied
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	err := m.db.QueryRowContext(ctx, "SELECT MAX(version) FROM "+migrationTable).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return int(version.Int64), nil
}
