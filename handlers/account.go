// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/ibis/auth"
	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/wiki"
)

type AccountHandler struct {
	wiki *wiki.Service
	cfg  cliparse.Config
}

func NewAccountHandler(svc *wiki.Service, cfg cliparse.Config) *AccountHandler {
	return &AccountHandler{wiki: svc, cfg: cfg}
}

func (h *AccountHandler) setCookie(w http.ResponseWriter, token string, maxAge int) {
	secure := h.cfg.Protocol == "https"
	middleware.SetAuthCookie(w, token, h.cfg.Domain, secure, maxAge)
}

// Register handles POST /account/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, err := h.wiki.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err, "register user")
		return
	}
	token, err := h.wiki.IssueToken(r.Context(), user.Person.Username)
	if err != nil {
		writeError(w, err, "issue token")
		return
	}

	slog.Info("user registered", "username", user.Person.Username)
	h.setCookie(w, token, int(auth.TokenLifetime.Seconds()))
	middleware.JSONResponse(w, http.StatusCreated, user)
}

// Login handles POST /account/login
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginUserRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, token, err := h.wiki.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err, "log in")
		return
	}

	h.setCookie(w, token, int(auth.TokenLifetime.Seconds()))
	middleware.JSONResponse(w, http.StatusOK, user)
}

// Logout handles POST /account/logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// MyProfile handles GET /account/my_profile
func (h *AccountHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, user)
}

// GetUser handles GET /user?name=&domain=
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	person, err := h.wiki.Store().ReadPersonByName(r.Context(), name, r.URL.Query().Get("domain"))
	if err != nil {
		writeError(w, err, "read user")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, person)
}
