// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/danielhkuo/ibis/models"
)

var editFields = []string{"id", "creator_id", "hash", "ap_id", "diff", "summary", "article_id", "previous_version_id", "created"}

func editDest(e *models.Edit) []any {
	return []any{&e.ID, &e.CreatorID, &e.Hash, &e.APID, &e.Diff, &e.Summary, &e.ArticleID, &e.PreviousVersionID, &e.Created}
}

type EditForm struct {
	CreatorID         int
	Hash              models.EditVersion
	APID              string
	Diff              string
	Summary           string
	ArticleID         int
	PreviousVersionID models.EditVersion
	Created           time.Time
}

const insertEdit = `
	INSERT INTO edit (creator_id, hash, ap_id, diff, summary, article_id, previous_version_id, created)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

func (s *Store) CreateEdit(ctx context.Context, form EditForm) (models.Edit, error) {

	created := form.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var id int
	err := s.db.QueryRowContext(ctx, insertEdit,
		form.CreatorID, form.Hash, form.APID, form.Diff, form.Summary,
		form.ArticleID, form.PreviousVersionID, created,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Edit{}, fmt.Errorf("edit %s: %w", form.APID, ErrAlreadyExists)
		}
		return models.Edit{}, fmt.Errorf("insert edit: %w", err)
	}

	return s.readEdit(ctx, "id = $1", id)
}

func (s *Store) readEdit(ctx context.Context, where string, arg any) (models.Edit, error) {
	var e models.Edit
	query := "SELECT " + columns("", editFields...) + " FROM edit WHERE " + where + " ORDER BY id LIMIT 1"
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(editDest(&e)...); err != nil {
		return models.Edit{}, notFound(err, "edit")
	}
	return e, nil
}

// ListEdits returns the edits of an article with their creators, oldest first
func (s *Store) ListEdits(ctx context.Context, articleID int) ([]models.EditView, error) {
	query := "SELECT " + columns("e", editFields...) + ", " + columns("p", personFields...) + `
		FROM edit e
		JOIN person p ON p.id = e.creator_id
		WHERE e.article_id = $1
		ORDER BY e.id`

	rows, err := s.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	defer rows.Close()

	views := []models.EditView{}
	for rows.Next() {
		var view models.EditView
		p, err := scanPersonAfter(rows, editDest(&view.Edit)...)
		if err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		view.Creator = p
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edits: %w", err)
	}
	return views, nil
}

// ReadEdit returns the first edit with the given version. Forked articles
// share versions with their origin.
func (s *Store) ReadEdit(ctx context.Context, version models.EditVersion) (models.Edit, error) {
	return s.readEdit(ctx, "hash = $1", version)
}

// AppendEdit stores an edit and the article text it produces in one
// transaction. oldText and form.PreviousVersionID must still be the
// article's current text and latest version, otherwise nothing is written
// and ErrStaleVersion is returned.
func (s *Store) AppendEdit(ctx context.Context, form EditForm, oldText, newText string) (models.Edit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Edit{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// the write comes first so the row lock is held for the version check
	res, err := tx.ExecContext(ctx,
		"UPDATE article SET text = $1 WHERE id = $2 AND text = $3", newText, form.ArticleID, oldText)
	if err != nil {
		return models.Edit{}, fmt.Errorf("update article text: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Edit{}, fmt.Errorf("update article text: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM article WHERE id = $1", form.ArticleID).Scan(&exists)
		if err != nil {
			return models.Edit{}, notFound(err, "article")
		}
		return models.Edit{}, fmt.Errorf("article %d: %w", form.ArticleID, ErrStaleVersion)
	}

	latest, err := latestEditVersion(ctx, tx, form.ArticleID)
	if err != nil {
		return models.Edit{}, err
	}
	if latest != form.PreviousVersionID {
		return models.Edit{}, fmt.Errorf("article %d at %s, not %s: %w",
			form.ArticleID, latest.Hash(), form.PreviousVersionID.Hash(), ErrStaleVersion)
	}

	created := form.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	var id int
	err = tx.QueryRowContext(ctx, insertEdit,
		form.CreatorID, form.Hash, form.APID, form.Diff, form.Summary,
		form.ArticleID, form.PreviousVersionID, created,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Edit{}, fmt.Errorf("edit %s: %w", form.APID, ErrAlreadyExists)
		}
		return models.Edit{}, fmt.Errorf("insert edit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Edit{}, fmt.Errorf("commit transaction: %w", err)
	}
	return s.readEdit(ctx, "id = $1", id)
}
