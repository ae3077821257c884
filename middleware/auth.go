// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/ibis/models"
)

// AuthCookie holds the login token
const AuthCookie = "auth"

// Authenticator resolves a login token to a local account
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.LocalUserView, error)
}

type userKey struct{}

// WithUser stores the authenticated account in ctx
func WithUser(ctx context.Context, user models.LocalUserView) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the account set by RequireAuth
func UserFromContext(ctx context.Context) (models.LocalUserView, bool) {
	user, ok := ctx.Value(userKey{}).(models.LocalUserView)
	return user, ok
}

// TokenFromRequest reads the login token from the auth cookie, falling back
// to a bearer Authorization header
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth rejects requests without a valid login token and passes the
// account on through the request context
func RequireAuth(a Authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			ErrorResponse(w, http.StatusUnauthorized, "Missing auth token")
			return
		}
		user, err := a.Authenticate(r.Context(), token)
		if err != nil {
			slog.Debug("authentication failed", "error", err, "path", r.URL.Path)
			ErrorResponse(w, http.StatusUnauthorized, "Invalid auth token")
			return
		}
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// SetAuthCookie sends the login token to the browser. The cookie domain is
// the instance domain without port.
func SetAuthCookie(w http.ResponseWriter, token, domain string, secure bool, maxAge int) {
	host := domain
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookie,
		Value:    token,
		Domain:   host,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}
