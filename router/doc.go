// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the ibis API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg)

Every API route is wrapped with request logging and Prometheus
instrumentation. Routes marked (auth) also pass through RequireAuth, which
reads the login token from the auth cookie or a bearer header.

# Endpoints

Operations:

	GET /health  - Database ping
	GET /metrics - Prometheus metrics

Accounts, under /api/v1:

	POST /account/register   - Create a local account and log in
	POST /account/login      - Log in, sets the auth cookie
	POST /account/logout     - Clear the auth cookie
	GET  /account/my_profile - Current account (auth)
	GET  /user               - Person by ?name= and optional &domain=

Articles, under /api/v1:

	POST  /article         - Create (auth)
	GET   /article         - Read by ?title=[&domain=] or ?id=
	PATCH /article         - Edit, returns a conflict when a merge fails (auth)
	GET   /article/list    - Approved articles, newest edit first
	GET   /search          - Title and text search by ?q=
	POST  /article/fork    - Copy a remote article locally (auth)
	POST  /article/protect - Admin only (auth)
	POST  /article/approve - Admin only (auth)

Conflicts, under /api/v1:

	GET    /edit_conflicts - Open conflicts of the current user (auth)
	DELETE /conflict       - Discard a conflict (auth)

Instances, under /api/v1:

	GET  /instance        - Local instance, or ?id=
	POST /instance/follow - Follow a remote instance (auth)
*/
package router
