// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/wiki"
)

type InstanceHandler struct {
	wiki *wiki.Service
}

func NewInstanceHandler(svc *wiki.Service) *InstanceHandler {
	return &InstanceHandler{wiki: svc}
}

// Get handles GET /instance, optionally with ?id=, defaulting to the local
// instance
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := queryInt(r, "id")
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid id")
		return
	}
	if id == nil {
		local, err := h.wiki.Store().ReadLocalInstance(r.Context())
		if err != nil {
			writeError(w, err, "read instance")
			return
		}
		id = &local.ID
	}

	view, err := h.wiki.Store().ReadInstanceView(r.Context(), *id)
	if err != nil {
		writeError(w, err, "read instance")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// Follow handles POST /instance/follow
func (h *InstanceHandler) Follow(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.FollowInstanceRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.wiki.FollowInstance(r.Context(), user, req.ID)
	if err != nil {
		writeError(w, err, "follow instance")
		return
	}
	slog.Info("instance followed", "instance", view.Instance.Domain, "user", user.Person.Username)
	middleware.JSONResponse(w, http.StatusOK, view)
}

// Health handles GET /health
func (h *InstanceHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.wiki.Store().DB().PingContext(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
