// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/models"
	"github.com/danielhkuo/ibis/wiki"
)

type ArticleHandler struct {
	wiki *wiki.Service
}

func NewArticleHandler(svc *wiki.Service) *ArticleHandler {
	return &ArticleHandler{wiki: svc}
}

// Create handles POST /article
func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.CreateArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.wiki.CreateArticle(r.Context(), user, req)
	if err != nil {
		writeError(w, err, "create article")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, view)
}

// Get handles GET /article?title=&domain= and GET /article?id=
func (h *ArticleHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	title, rawID, domain := q.Get("title"), q.Get("id"), q.Get("domain")

	var (
		view models.ArticleView
		err  error
	)
	switch {
	case title != "" && rawID == "":
		view, err = h.wiki.ReadArticleViewByTitle(r.Context(), title, domain)
	case rawID != "" && title == "":
		if domain != "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "cannot combine id and domain")
			return
		}
		id, convErr := strconv.Atoi(rawID)
		if convErr != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "invalid id")
			return
		}
		view, err = h.wiki.ReadArticleView(r.Context(), id)
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "must pass exactly one of title, id")
		return
	}
	if err != nil {
		writeError(w, err, "read article")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, view)
}

// Edit handles PATCH /article. A conflict that needs a manual merge is
// returned with status 200 in the conflict field.
func (h *ArticleHandler) Edit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.EditArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	conflict, err := h.wiki.EditArticle(r.Context(), user, req)
	if err != nil {
		writeError(w, err, "edit article")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.EditArticleResponse{Conflict: conflict})
}

// List handles GET /article/list?only_local=&instance_id=
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	onlyLocal, _ := strconv.ParseBool(r.URL.Query().Get("only_local"))
	instanceID, err := queryInt(r, "instance_id")
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "invalid instance_id")
		return
	}

	articles, err := h.wiki.Store().ListArticles(r.Context(), onlyLocal, instanceID)
	if err != nil {
		writeError(w, err, "list articles")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, articles)
}

// Search handles GET /search?q=
func (h *ArticleHandler) Search(w http.ResponseWriter, r *http.Request) {
	articles, err := h.wiki.SearchArticles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err, "search articles")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, articles)
}

// Fork handles POST /article/fork
func (h *ArticleHandler) Fork(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.ForkArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	view, err := h.wiki.ForkArticle(r.Context(), user, req)
	if err != nil {
		writeError(w, err, "fork article")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, view)
}

// Protect handles POST /article/protect
func (h *ArticleHandler) Protect(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.ProtectArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	article, err := h.wiki.ProtectArticle(r.Context(), user, req)
	if err != nil {
		writeError(w, err, "protect article")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, article)
}

// Approve handles POST /article/approve
func (h *ArticleHandler) Approve(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.ApproveArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.wiki.ApproveArticle(r.Context(), user, req); err != nil {
		writeError(w, err, "approve article")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
