// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the ibis wiki backend.

Ibis is a wiki where every article keeps its full history as diffs. Edits
based on an outdated version are merged automatically when possible and
otherwise returned to the author as a conflict to resolve by hand.

# Commands

	ibis serve [-b addr] [-d url] [-t sqlite|postgres] [-c options.yaml]
	ibis migrate up|status [-d url] [-t type]
	ibis migrate down [-n N] [-d url] [-t type]
	ibis dev [-b addr] [-frontend cmd] [-backend cmd] [-watch dirs]
	ibis version

Settings fall back to environment variables, which may come from a .env
file in the working directory:

	DATABASE_URL=file:ibis.db ibis serve

On first start, serve creates the local instance, the admin account from
the options file (ibis/ibis by default) and the main page.

# Development

"ibis dev" kills a stale bundler, then runs the frontend bundler proxying
to the backend bind address next to the backend. The backend is restarted
whenever Go, SQL or go.mod files change. Ctrl-C stops both.

# Architecture

  - handlers: HTTP request handlers (accounts, articles, conflicts, instances)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, auth cookie, metrics, JSON helpers
  - wiki: Edit workflow and conflict resolution
  - merge: Diffs and three-way merges
  - store: SQL persistence
  - db: Connections and versioned migrations
  - auth: Passwords and login tokens
  - models: Request/response and domain types
  - cliparse: Configuration parsing
  - devrun: Development runner

See package documentation for each component.
*/
package main
