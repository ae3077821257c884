// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/ibis/models"
)

var conflictFields = []string{"id", "hash", "diff", "summary", "creator_id", "article_id", "previous_version_id", "published"}

func scanConflict(row scanner) (models.Conflict, error) {
	var c models.Conflict
	err := row.Scan(&c.ID, &c.Hash, &c.Diff, &c.Summary, &c.CreatorID, &c.ArticleID, &c.PreviousVersionID, &c.Published)
	return c, err
}

// ConflictForm holds an edit that could not be applied. CreatorID is a
// person id.
type ConflictForm struct {
	Hash              models.EditVersion
	Diff              string
	Summary           string
	CreatorID         int
	ArticleID         int
	PreviousVersionID models.EditVersion
}

func (s *Store) CreateConflict(ctx context.Context, form ConflictForm) (models.Conflict, error) {
	const query = `
		INSERT INTO conflict (hash, diff, summary, creator_id, article_id, previous_version_id, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var id int
	err := s.db.QueryRowContext(ctx, query,
		form.Hash, form.Diff, form.Summary, form.CreatorID, form.ArticleID,
		form.PreviousVersionID, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return models.Conflict{}, fmt.Errorf("insert conflict: %w", err)
	}
	return s.ReadConflict(ctx, id)
}

func (s *Store) ReadConflict(ctx context.Context, id int) (models.Conflict, error) {
	query := "SELECT " + columns("", conflictFields...) + " FROM conflict WHERE id = $1"
	c, err := scanConflict(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Conflict{}, notFound(err, "conflict")
	}
	return c, nil
}

// ListConflicts returns the stored conflicts of one person, oldest first
func (s *Store) ListConflicts(ctx context.Context, creatorID int) ([]models.Conflict, error) {
	query := "SELECT " + columns("", conflictFields...) + " FROM conflict WHERE creator_id = $1 ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []models.Conflict{}
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return conflicts, nil
}

// DeleteConflict removes a conflict owned by creatorID. A conflict of
// another person is reported as not found.
func (s *Store) DeleteConflict(ctx context.Context, id, creatorID int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conflict WHERE id = $1 AND creator_id = $2", id, creatorID)
	if err != nil {
		return fmt.Errorf("delete conflict: %w", err)
	}
	return checkAffected(res, "delete conflict")
}
