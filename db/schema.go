// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver and migration set
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts "postgres", "postgresql" and "sqlite" in any case
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database type %q", s)
}

// Validate reports an error for unknown dialects
func (d Dialect) Validate() error {
	if d != Postgres && d != SQLite {
		return fmt.Errorf("unsupported database type %q", string(d))
	}
	return nil
}

// Open connects to the database and verifies the connection.
// SQLite connections always enforce foreign keys; in-memory databases are
// pinned to a single connection so every query sees the same data.
func Open(ctx context.Context, dialect Dialect, url string) (*sql.DB, error) {
	if err := dialect.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	dsn := url
	if dialect == SQLite {
		dsn = sqliteDSN(url)
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite && isMemory(url) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}
	return conn, nil
}

func sqliteDSN(url string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if !isMemory(url) {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	if strings.Contains(url, "?") {
		return url + "&" + pragmas
	}
	return url + "?" + pragmas
}

func isMemory(url string) bool {
	return strings.Contains(url, ":memory:") || strings.Contains(url, "mode=memory")
}

// CreateSchema brings the database up to the latest migration.
// Safe to call multiple times - applied migrations are skipped.
func CreateSchema(conn *sql.DB, dialect Dialect) error {
	m, err := NewMigrator(conn, dialect)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := m.Up(context.Background()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
