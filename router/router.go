// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/ibis/cliparse"
	"github.com/danielhkuo/ibis/handlers"
	"github.com/danielhkuo/ibis/middleware"
	"github.com/danielhkuo/ibis/wiki"
)

// APIPrefix is prepended to every JSON API route
const APIPrefix = "/api/v1"

func NewRouter(svc *wiki.Service, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()
	metrics := middleware.NewMetrics()

	accountHandler := handlers.NewAccountHandler(svc, cfg)
	articleHandler := handlers.NewArticleHandler(svc)
	conflictHandler := handlers.NewConflictHandler(svc)
	instanceHandler := handlers.NewInstanceHandler(svc)

	// public registers "METHOD /path" below the API prefix
	public := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		full := method + " " + APIPrefix + path
		mux.HandleFunc(full, middleware.WithLogging(metrics.Instrument(full, h)))
	}
	private := func(pattern string, h http.HandlerFunc) {
		public(pattern, middleware.RequireAuth(svc, h))
	}

	mux.HandleFunc("GET /health", instanceHandler.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Accounts
	public("POST /account/register", accountHandler.Register)
	public("POST /account/login", accountHandler.Login)
	public("POST /account/logout", accountHandler.Logout)
	private("GET /account/my_profile", accountHandler.MyProfile)
	public("GET /user", accountHandler.GetUser)

	// Articles
	private("POST /article", articleHandler.Create)
	public("GET /article", articleHandler.Get)
	private("PATCH /article", articleHandler.Edit)
	public("GET /article/list", articleHandler.List)
	public("GET /search", articleHandler.Search)
	private("POST /article/fork", articleHandler.Fork)
	private("POST /article/protect", articleHandler.Protect)
	private("POST /article/approve", articleHandler.Approve)

	// Conflicts
	private("GET /edit_conflicts", conflictHandler.List)
	private("DELETE /conflict", conflictHandler.Delete)

	// Instances
	public("GET /instance", instanceHandler.Get)
	private("POST /instance/follow", instanceHandler.Follow)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ibis API v1"))
	})

	return mux
}
