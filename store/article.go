// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ibis/models"
)

var articleFields = []string{"id", "title", "text", "ap_id", "instance_id", "local", "protected", "approved", "published"}

func scanArticle(row scanner) (models.Article, error) {
	var a models.Article
	err := row.Scan(&a.ID, &a.Title, &a.Text, &a.APID, &a.InstanceID, &a.Local, &a.Protected, &a.Approved, &a.Published)
	return a, err
}

func scanArticles(rows *sql.Rows) ([]models.Article, error) {
	defer rows.Close()
	articles := []models.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// TitleToPath converts a display title to its stored form
func TitleToPath(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

type ArticleForm struct {
	Title      string
	Text       string
	APID       string
	InstanceID int
	Local      bool
	Protected  bool
	Approved   bool
	Published  time.Time
}

func (s *Store) CreateArticle(ctx context.Context, form ArticleForm) (models.Article, error) {
	const query = `
		INSERT INTO article (title, text, ap_id, instance_id, local, protected, approved, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	published := form.Published
	if published.IsZero() {
		published = time.Now().UTC()
	}
	var id int
	err := s.db.QueryRowContext(ctx, query,
		TitleToPath(form.Title), form.Text, form.APID, form.InstanceID,
		form.Local, form.Protected, form.Approved, published,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Article{}, fmt.Errorf("article %q: %w", form.Title, ErrAlreadyExists)
		}
		return models.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return s.ReadArticle(ctx, id)
}

func (s *Store) ReadArticle(ctx context.Context, id int) (models.Article, error) {
	query := "SELECT " + columns("", articleFields...) + " FROM article WHERE id = $1"
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Article{}, notFound(err, "article")
	}
	return a, nil
}

// ReadArticleByTitle finds a local article, or the article of a remote
// instance when domain is set.
func (s *Store) ReadArticleByTitle(ctx context.Context, title, domain string) (models.Article, error) {
	title = TitleToPath(title)

	var row *sql.Row
	if domain == "" {
		query := "SELECT " + columns("", articleFields...) + " FROM article WHERE title = $1 AND local = TRUE"
		row = s.db.QueryRowContext(ctx, query, title)
	} else {
		query := "SELECT " + columns("a", articleFields...) + `
			FROM article a
			JOIN instance i ON i.id = a.instance_id
			WHERE a.title = $1 AND i.domain = $2 AND a.local = FALSE`
		row = s.db.QueryRowContext(ctx, query, title, domain)
	}
	a, err := scanArticle(row)
	if err != nil {
		return models.Article{}, notFound(err, "article")
	}
	return a, nil
}

// ListArticles returns approved articles, most recently edited first. When
// instanceID is set only that instance's articles are listed.
func (s *Store) ListArticles(ctx context.Context, onlyLocal bool, instanceID *int) ([]models.Article, error) {
	where := []string{"a.approved = TRUE"}
	var args []any
	if onlyLocal {
		where = append(where, "a.local = TRUE")
	}
	if instanceID != nil {
		args = append(args, *instanceID)
		where = append(where, fmt.Sprintf("a.instance_id = $%d", len(args)))
	}

	query := "SELECT " + columns("a", articleFields...) + `
		FROM article a
		JOIN edit e ON e.article_id = a.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY a.id
		ORDER BY MAX(e.created) DESC, a.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return scanArticles(rows)
}

// SearchArticles matches the query against titles and texts, ignoring case.
// Spaces in the query match any run of characters.
func (s *Store) SearchArticles(ctx context.Context, q string) ([]models.Article, error) {
	pattern := "%" + strings.ReplaceAll(likePattern(q), " ", "%") + "%"
	query := "SELECT " + columns("", articleFields...) + `
		FROM article
		WHERE approved = TRUE
		AND (LOWER(title) LIKE LOWER($1) ESCAPE '\' OR LOWER(text) LIKE LOWER($1) ESCAPE '\')
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, pattern)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return scanArticles(rows)
}

func (s *Store) updateArticle(ctx context.Context, id int, set string, value any) (models.Article, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE article SET "+set+" = $1 WHERE id = $2", value, id)
	if err != nil {
		return models.Article{}, fmt.Errorf("update article %s: %w", set, err)
	}
	if err := checkAffected(res, "update article"); err != nil {
		return models.Article{}, err
	}
	return s.ReadArticle(ctx, id)
}

func (s *Store) UpdateArticleText(ctx context.Context, id int, text string) (models.Article, error) {
	return s.updateArticle(ctx, id, "text", text)
}

func (s *Store) UpdateArticleProtected(ctx context.Context, id int, protected bool) (models.Article, error) {
	return s.updateArticle(ctx, id, "protected", protected)
}

func (s *Store) UpdateArticleApproved(ctx context.Context, id int, approved bool) (models.Article, error) {
	return s.updateArticle(ctx, id, "approved", approved)
}

// DeleteArticle removes an article together with its edits and conflicts
func (s *Store) DeleteArticle(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM article WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return checkAffected(res, "delete article")
}

// LatestEditVersion returns the hash of the newest edit, or the default
// version for an article without edits.
func (s *Store) LatestEditVersion(ctx context.Context, articleID int) (models.EditVersion, error) {
	return latestEditVersion(ctx, s.db, articleID)
}

func latestEditVersion(ctx context.Context, q queryer, articleID int) (models.EditVersion, error) {
	var version models.EditVersion
	err := q.QueryRowContext(ctx,
		"SELECT hash FROM edit WHERE article_id = $1 ORDER BY id DESC LIMIT 1", articleID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultEditVersion(), nil
	}
	if err != nil {
		return models.EditVersion{}, fmt.Errorf("read latest version: %w", err)
	}
	return version, nil
}
