// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/wiki"
)

type ConflictHandler struct {
	wiki *wiki.Service
}

func NewConflictHandler(svc *wiki.Service) *ConflictHandler {
	return &ConflictHandler{wiki: svc}
}

// List handles GET /edit_conflicts
func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	conflicts, err := h.wiki.ListConflicts(r.Context(), user)
	if err != nil {
		writeError(w, err, "list conflicts")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, conflicts)
}

// Delete handles DELETE /conflict
func (h *ConflictHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.DeleteConflictRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.wiki.DeleteConflict(r.Context(), user, req.ConflictID); err != nil {
		writeError(w, err, "delete conflict")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
