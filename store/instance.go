// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danielhkuo/ibis/models"
)

var instanceFields = []string{
	"id", "domain", "ap_id", "description", "inbox_url", "articles_url",
	"public_key", "private_key", "last_refreshed_at", "local",
}

func scanInstance(row scanner) (models.Instance, error) {
	var i models.Instance
	var description, privateKey sql.NullString
	err := row.Scan(&i.ID, &i.Domain, &i.APID, &description, &i.InboxURL, &i.ArticlesURL,
		&i.PublicKey, &privateKey, &i.LastRefreshedAt, &i.Local)
	if err != nil {
		return models.Instance{}, err
	}
	if description.Valid {
		i.Description = &description.String
	}
	if privateKey.Valid {
		i.PrivateKey = &privateKey.String
	}
	return i, nil
}

func scanInstances(rows *sql.Rows) ([]models.Instance, error) {
	defer rows.Close()
	instances := []models.Instance{}
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

type InstanceForm struct {
	Domain          string
	APID            string
	Description     *string
	InboxURL        string
	ArticlesURL     string
	PublicKey       string
	PrivateKey      *string
	LastRefreshedAt time.Time
	Local           bool
}

// UpsertInstance inserts an instance or refreshes the one with the same ap_id
func (s *Store) UpsertInstance(ctx context.Context, form InstanceForm) (models.Instance, error) {
	const query = `
		INSERT INTO instance (domain, ap_id, description, inbox_url, articles_url, public_key, private_key, last_refreshed_at, local)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ap_id) DO UPDATE SET
			domain = excluded.domain,
			description = excluded.description,
			inbox_url = excluded.inbox_url,
			articles_url = excluded.articles_url,
			public_key = excluded.public_key,
			private_key = excluded.private_key,
			last_refreshed_at = excluded.last_refreshed_at,
			local = excluded.local
		RETURNING id`

	refreshed := form.LastRefreshedAt
	if refreshed.IsZero() {
		refreshed = time.Now().UTC()
	}
	var id int
	err := s.db.QueryRowContext(ctx, query,
		form.Domain, form.APID, form.Description, form.InboxURL, form.ArticlesURL,
		form.PublicKey, form.PrivateKey, refreshed, form.Local,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Instance{}, fmt.Errorf("instance %q: %w", form.Domain, ErrAlreadyExists)
		}
		return models.Instance{}, fmt.Errorf("upsert instance: %w", err)
	}
	return s.ReadInstance(ctx, id)
}

func (s *Store) ReadInstance(ctx context.Context, id int) (models.Instance, error) {
	query := "SELECT " + columns("", instanceFields...) + " FROM instance WHERE id = $1"
	i, err := scanInstance(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Instance{}, notFound(err, "instance")
	}
	return i, nil
}

// ReadLocalInstance returns the instance this server runs
func (s *Store) ReadLocalInstance(ctx context.Context) (models.Instance, error) {
	query := "SELECT " + columns("", instanceFields...) + " FROM instance WHERE local = TRUE ORDER BY id LIMIT 1"
	i, err := scanInstance(s.db.QueryRowContext(ctx, query))
	if err != nil {
		return models.Instance{}, notFound(err, "local instance")
	}
	return i, nil
}

func (s *Store) ListInstances(ctx context.Context) ([]models.Instance, error) {
	query := "SELECT " + columns("", instanceFields...) + " FROM instance ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return scanInstances(rows)
}

// FollowInstance records that follower follows the instance. Pending stays
// true until the remote side accepts.
func (s *Store) FollowInstance(ctx context.Context, instanceID, followerID int, pending bool) error {
	const query = `
		INSERT INTO instance_follow (instance_id, follower_id, pending)
		VALUES ($1, $2, $3)
		ON CONFLICT (instance_id, follower_id) DO UPDATE SET pending = excluded.pending`

	if _, err := s.db.ExecContext(ctx, query, instanceID, followerID, pending); err != nil {
		return fmt.Errorf("follow instance: %w", err)
	}
	return nil
}

// ListFollowedInstances returns the instances a person follows
func (s *Store) ListFollowedInstances(ctx context.Context, personID int) ([]models.Instance, error) {
	query := "SELECT " + columns("i", instanceFields...) + `
		FROM instance_follow f
		JOIN instance i ON i.id = f.instance_id
		WHERE f.follower_id = $1
		ORDER BY i.id`
	rows, err := s.db.QueryContext(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("list followed instances: %w", err)
	}
	return scanInstances(rows)
}

// ReadFollowers returns the persons following an instance
func (s *Store) ReadFollowers(ctx context.Context, instanceID int) ([]models.Person, error) {
	query := "SELECT " + columns("p", personFields...) + `
		FROM instance_follow f
		JOIN person p ON p.id = f.follower_id
		WHERE f.instance_id = $1
		ORDER BY p.id`
	rows, err := s.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	defer rows.Close()

	persons := []models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers: %w", err)
	}
	return persons, nil
}

// ReadInstanceView returns an instance with its followers
func (s *Store) ReadInstanceView(ctx context.Context, id int) (models.InstanceView, error) {
	i, err := s.ReadInstance(ctx, id)
	if err != nil {
		return models.InstanceView{}, err
	}
	followers, err := s.ReadFollowers(ctx, id)
	if err != nil {
		return models.InstanceView{}, err
	}
	return models.InstanceView{Instance: i, Followers: followers}, nil
}
