// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package wiki implements the article workflow on top of the store: account
// registration and login, article creation, edits with conflict detection
// and resolution, forks and moderation.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/danielhkuo/ibis/auth"
	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
)

var (
	ErrNoChanges          = errors.New("edit contains no changes")
	ErrEmptySummary       = errors.New("no summary given")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrLocalLink          = errors.New("links to the local instance don't work over federation")
	ErrForbidden          = errors.New("forbidden")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidLogin       = errors.New("invalid login")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrEmptyQuery         = errors.New("query is empty")
)

// Service coordinates the store for wiki operations
type Service struct {
	store *store.Store
	cfg   cliparse.Config
}

func New(st *store.Store, cfg cliparse.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// Store exposes the underlying store for read-only handlers
func (s *Service) Store() *store.Store {
	return s.store
}

func (s *Service) baseURL() string {
	return s.cfg.Protocol + "://" + s.cfg.Domain
}

func (s *Service) personAPID(username string) string {
	return s.baseURL() + "/user/" + username
}

func (s *Service) articleAPID(title string) string {
	return s.baseURL() + "/article/" + store.TitleToPath(title)
}

func editAPID(article models.Article, version models.EditVersion) string {
	return article.APID + "/" + version.Hash()
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTitle)
	}
	if strings.Contains(title, "/") {
		return fmt.Errorf("%w: invalid character `/`", ErrInvalidTitle)
	}
	return nil
}

func requireAdmin(user models.LocalUserView) error {
	if !user.LocalUser.Admin {
		return fmt.Errorf("%w: only admins can do this", ErrForbidden)
	}
	return nil
}

// Setup prepares a fresh database: the local instance, the admin account and
// the main page. It does nothing once the local instance exists.
func (s *Service) Setup(ctx context.Context) error {
	_, err := s.store.ReadLocalInstance(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	keys, err := auth.GenerateKeypair()
	if err != nil {
		return err
	}
	base := s.baseURL()
	instance, err := s.store.UpsertInstance(ctx, store.InstanceForm{
		Domain:      s.cfg.Domain,
		APID:        base,
		InboxURL:    base + "/inbox",
		ArticlesURL: base + "/all_articles",
		PublicKey:   keys.PublicKey,
		PrivateKey:  &keys.PrivateKey,
		Local:       true,
	})
	if err != nil {
		return fmt.Errorf("create local instance: %w", err)
	}
	slog.Info("created local instance", "domain", instance.Domain)

	setup := s.cfg.Options.Setup
	admin, err := s.createLocalUser(ctx, setup.AdminUsername, setup.AdminPassword, true)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	slog.Info("created admin account", "username", admin.Person.Username)

	_, err = s.CreateArticle(ctx, admin, models.CreateArticleRequest{
		Title:   models.MainPageName,
		Text:    "Welcome to Ibis, the federated encyclopedia!",
		Summary: "Default main page",
	})
	if err != nil {
		return fmt.Errorf("create main page: %w", err)
	}
	return nil
}
