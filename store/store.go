// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/danielhkuo/ibis/auth"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrStaleVersion means the article changed after the caller read it
	ErrStaleVersion = errors.New("article changed concurrently")
)

// Store persists wiki state. Queries use $N placeholders, which both lib/pq
// and modernc.org/sqlite accept.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("read %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// columns prefixes every column name with alias
func columns(alias string, names ...string) string {
	if alias == "" {
		return strings.Join(names, ", ")
	}
	prefixed := make([]string, len(names))
	for i, n := range names {
		prefixed[i] = alias + "." + n
	}
	return strings.Join(prefixed, ", ")
}

// likePattern escapes LIKE wildcards in s for use with ESCAPE '\'
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ReadJWTSecret returns the token signing secret, creating it on first use
func (s *Store) ReadJWTSecret(ctx context.Context) (string, error) {
	const query = "SELECT secret FROM jwt_secret ORDER BY id LIMIT 1"

	var secret string
	err := s.db.QueryRowContext(ctx, query).Scan(&secret)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read jwt secret: %w", err)
	}

	secret, err = auth.GenerateSecret(32)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO jwt_secret (secret) VALUES ($1)", secret); err != nil {
		return "", fmt.Errorf("insert jwt secret: %w", err)
	}

	// a concurrent caller may have inserted first; the lowest id wins
	if err := s.db.QueryRowContext(ctx, query).Scan(&secret); err != nil {
		return "", fmt.Errorf("read jwt secret: %w", err)
	}
	return secret, nil
}
