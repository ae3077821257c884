// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start at debug level and completion with status and
duration_ms. Server errors are logged at error level.

# Authentication

RequireAuth reads the login token from the "auth" cookie, or from an
"Authorization: Bearer" header, and resolves it through an Authenticator:

	mux.HandleFunc("GET /api/v1/account/my_profile",
		middleware.RequireAuth(svc, handler))

Handlers read the account back with UserFromContext. SetAuthCookie writes
the cookie as HttpOnly and SameSite=Strict for the instance domain.

# Metrics

Metrics keeps a private Prometheus registry with per-route request counts
and latencies:

	metrics := middleware.NewMetrics()
	mux.HandleFunc(pattern, metrics.Instrument(pattern, handler))
	mux.Handle("GET /metrics", metrics.Handler())

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.EditArticleRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

ParseJSONBody limits request bodies to 4 MiB.
*/
package middleware
