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

var personFields = []string{"id", "username", "ap_id", "inbox_url", "public_key", "private_key", "last_refreshed_at", "local"}

func personDest(p *models.Person, privateKey *sql.NullString) []any {
	return []any{&p.ID, &p.Username, &p.APID, &p.InboxURL, &p.PublicKey, privateKey, &p.LastRefreshedAt, &p.Local}
}

// scanPerson scans the person columns followed by extra
func scanPerson(row scanner, extra ...any) (models.Person, error) {
	var p models.Person
	var privateKey sql.NullString
	if err := row.Scan(append(personDest(&p, &privateKey), extra...)...); err != nil {
		return models.Person{}, err
	}
	if privateKey.Valid {
		p.PrivateKey = &privateKey.String
	}
	return p, nil
}

// scanPersonAfter scans prefix followed by the person columns
func scanPersonAfter(row scanner, prefix ...any) (models.Person, error) {
	var p models.Person
	var privateKey sql.NullString
	if err := row.Scan(append(prefix, personDest(&p, &privateKey)...)...); err != nil {
		return models.Person{}, err
	}
	if privateKey.Valid {
		p.PrivateKey = &privateKey.String
	}
	return p, nil
}

// PersonForm is the insertable part of a person
type PersonForm struct {
	Username        string
	APID            string
	InboxURL        string
	PublicKey       string
	PrivateKey      *string
	LastRefreshedAt time.Time
	Local           bool
}

// UpsertPerson inserts a person or refreshes the one with the same ap_id
func (s *Store) UpsertPerson(ctx context.Context, form PersonForm) (models.Person, error) {
	const query = `
		INSERT INTO person (username, ap_id, inbox_url, public_key, private_key, last_refreshed_at, local)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ap_id) DO UPDATE SET
			username = excluded.username,
			inbox_url = excluded.inbox_url,
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
		form.Username, form.APID, form.InboxURL, form.PublicKey, form.PrivateKey, refreshed, form.Local,
	).Scan(&id)
	if err != nil {
		return models.Person{}, fmt.Errorf("upsert person: %w", err)
	}
	return s.ReadPerson(ctx, id)
}

func (s *Store) ReadPerson(ctx context.Context, id int) (models.Person, error) {
	query := "SELECT " + columns("", personFields...) + " FROM person WHERE id = $1"
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Person{}, notFound(err, "person")
	}
	return p, nil
}

func (s *Store) ReadPersonByAPID(ctx context.Context, apID string) (models.Person, error) {
	query := "SELECT " + columns("", personFields...) + " FROM person WHERE ap_id = $1"
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, apID))
	if err != nil {
		return models.Person{}, notFound(err, "person")
	}
	return p, nil
}

// DeletePerson removes a person. Their account, edits and conflicts go with it.
func (s *Store) DeletePerson(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM person WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return checkAffected(res, "delete person")
}

// ReadPersonByName finds a person by username. An empty domain means a local
// user, otherwise the person's ap_id must belong to that domain.
func (s *Store) ReadPersonByName(ctx context.Context, username, domain string) (models.Person, error) {
	base := "SELECT " + columns("", personFields...) + " FROM person WHERE username = $1"

	var row *sql.Row
	if domain == "" {
		row = s.db.QueryRowContext(ctx, base+" AND local = TRUE", username)
	} else {
		pattern := "%://" + likePattern(domain) + "/%"
		row = s.db.QueryRowContext(ctx, base+` AND local = FALSE AND ap_id LIKE $2 ESCAPE '\'`, username, pattern)
	}
	p, err := scanPerson(row)
	if err != nil {
		return models.Person{}, notFound(err, "person")
	}
	return p, nil
}

// LocalUserForm registers a local account along with its person
type LocalUserForm struct {
	Person            PersonForm
	PasswordEncrypted string
	Admin             bool
}

// CreateLocalUser inserts the person and local_user rows in one transaction
func (s *Store) CreateLocalUser(ctx context.Context, form LocalUserForm) (models.LocalUserView, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.LocalUserView{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const insertPerson = `
		INSERT INTO person (username, ap_id, inbox_url, public_key, private_key, last_refreshed_at, local)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id`

	var personID int
	err = tx.QueryRowContext(ctx, insertPerson,
		form.Person.Username, form.Person.APID, form.Person.InboxURL,
		form.Person.PublicKey, form.Person.PrivateKey, time.Now().UTC(),
	).Scan(&personID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.LocalUserView{}, fmt.Errorf("user %q: %w", form.Person.Username, ErrAlreadyExists)
		}
		return models.LocalUserView{}, fmt.Errorf("insert person: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO local_user (password_encrypted, person_id, admin) VALUES ($1, $2, $3)",
		form.PasswordEncrypted, personID, form.Admin,
	)
	if err != nil {
		return models.LocalUserView{}, fmt.Errorf("insert local user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.LocalUserView{}, fmt.Errorf("commit transaction: %w", err)
	}
	return s.ReadLocalUserByPerson(ctx, personID)
}

const localUserQuery = `
	SELECT %s, l.id, l.password_encrypted, l.person_id, l.admin
	FROM person p
	JOIN local_user l ON l.person_id = p.id
	WHERE %s`

func (s *Store) readLocalUser(ctx context.Context, where string, arg any) (models.LocalUserView, error) {
	query := fmt.Sprintf(localUserQuery, columns("p", personFields...), where)

	var view models.LocalUserView
	lu := &view.LocalUser
	p, err := scanPerson(s.db.QueryRowContext(ctx, query, arg), &lu.ID, &lu.PasswordEncrypted, &lu.PersonID, &lu.Admin)
	if err != nil {
		return models.LocalUserView{}, notFound(err, "local user")
	}
	view.Person = p

	view.Following, err = s.ListFollowedInstances(ctx, p.ID)
	if err != nil {
		return models.LocalUserView{}, err
	}
	return view, nil
}

// ReadLocalUserByName looks up a local account by username
func (s *Store) ReadLocalUserByName(ctx context.Context, username string) (models.LocalUserView, error) {
	return s.readLocalUser(ctx, "p.local = TRUE AND p.username = $1", username)
}

func (s *Store) ReadLocalUserByPerson(ctx context.Context, personID int) (models.LocalUserView, error) {
	return s.readLocalUser(ctx, "p.id = $1", personID)
}

// CountLocalUsers returns the number of registered accounts
func (s *Store) CountLocalUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM local_user").Scan(&n); err != nil {
		return 0, fmt.Errorf("count local users: %w", err)
	}
	return n, nil
}
