// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/ibis/auth"
	"github.com/danielhkuo/ibis/merge"
	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/store"
	"github.com/danielhkuo/ibis/wiki"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, wiki.ErrForbidden), errors.Is(err, wiki.ErrRegistrationClosed):
		return http.StatusForbidden
	case errors.Is(err, wiki.ErrInvalidLogin), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, wiki.ErrNoChanges),
		errors.Is(err, wiki.ErrEmptySummary),
		errors.Is(err, wiki.ErrInvalidTitle),
		errors.Is(err, wiki.ErrInvalidUsername),
		errors.Is(err, wiki.ErrLocalLink),
		errors.Is(err, wiki.ErrEmptyQuery),
		errors.Is(err, merge.ErrVersionNotFound):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the status for err. Internal errors are logged
// and their details withheld.
func writeError(w http.ResponseWriter, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "action", action, "error", err)
		middleware.ErrorResponse(w, status, "Failed to "+action)
		return
	}
	middleware.ErrorResponse(w, status, err.Error())
}

// currentUser returns the account RequireAuth put in the context
func currentUser(w http.ResponseWriter, r *http.Request) (models.LocalUserView, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Not logged in")
	}
	return user, ok
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
