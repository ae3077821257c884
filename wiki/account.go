// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package wiki

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielhkuo/ibis/auth"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
)

func (s *Service) createLocalUser(ctx context.Context, username, password string, admin bool) (models.LocalUserView, error) {
	if username == "" || strings.ContainsAny(username, "/ @") {
		return models.LocalUserView{}, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if password == "" {
		return models.LocalUserView{}, fmt.Errorf("%w: password must not be empty", ErrInvalidLogin)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.LocalUserView{}, err
	}
	keys, err := auth.GenerateKeypair()
	if err != nil {
		return models.LocalUserView{}, err
	}

	return s.store.CreateLocalUser(ctx, store.LocalUserForm{
		Person: store.PersonForm{
			Username:   username,
			APID:       s.personAPID(username),
			InboxURL:   s.baseURL() + "/inbox",
			PublicKey:  keys.PublicKey,
			PrivateKey: &keys.PrivateKey,
		},
		PasswordEncrypted: hash,
		Admin:             admin,
	})
}

// Register creates a regular account when registration is open
func (s *Service) Register(ctx context.Context, username, password string) (models.LocalUserView, error) {
	if !s.cfg.Options.RegistrationOpen {
		return models.LocalUserView{}, ErrRegistrationClosed
	}
	return s.createLocalUser(ctx, username, password, false)
}

// Login checks the password and returns the account with a fresh token
func (s *Service) Login(ctx context.Context, username, password string) (models.LocalUserView, string, error) {
	user, err := s.store.ReadLocalUserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return models.LocalUserView{}, "", ErrInvalidLogin
	}
	if err != nil {
		return models.LocalUserView{}, "", err
	}
	if err := auth.CheckPassword(user.LocalUser.PasswordEncrypted, password); err != nil {
		return models.LocalUserView{}, "", ErrInvalidLogin
	}

	token, err := s.IssueToken(ctx, user.Person.Username)
	if err != nil {
		return models.LocalUserView{}, "", err
	}
	return user, token, nil
}

// IssueToken signs a login token for a local username
func (s *Service) IssueToken(ctx context.Context, username string) (string, error) {
	secret, err := s.store.ReadJWTSecret(ctx)
	if err != nil {
		return "", err
	}
	return auth.IssueToken(username, s.cfg.Domain, secret, time.Now())
}

// Authenticate resolves a login token to its local account
func (s *Service) Authenticate(ctx context.Context, token string) (models.LocalUserView, error) {
	secret, err := s.store.ReadJWTSecret(ctx)
	if err != nil {
		return models.LocalUserView{}, err
	}
	username, err := auth.ParseToken(token, secret)
	if err != nil {
		return models.LocalUserView{}, err
	}
	user, err := s.store.ReadLocalUserByName(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return models.LocalUserView{}, fmt.Errorf("%w: unknown user", auth.ErrInvalidToken)
	}
	return user, err
}

// FollowInstance records a follow of a remote instance. It stays pending
// until the remote instance accepts it.
func (s *Service) FollowInstance(ctx context.Context, user models.LocalUserView, instanceID int) (models.InstanceView, error) {
	instance, err := s.store.ReadInstance(ctx, instanceID)
	if err != nil {
		return models.InstanceView{}, err
	}
	if instance.Local {
		return models.InstanceView{}, fmt.Errorf("%w: cannot follow the local instance", ErrForbidden)
	}
	if err := s.store.FollowInstance(ctx, instance.ID, user.Person.ID, true); err != nil {
		return models.InstanceView{}, err
	}
	return s.store.ReadInstanceView(ctx, instance.ID)
}
