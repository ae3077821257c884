// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ibis API.

# Handler Types

Each handler is a thin struct over the wiki service:

  - AccountHandler: Registration, login cookies and profiles
  - ArticleHandler: Article reads, edits, forks and moderation
  - ConflictHandler: Listing and discarding edit conflicts
  - InstanceHandler: Instance info, follows and the health check

Handlers are created via constructor functions:

	articleHandler := handlers.NewArticleHandler(svc)

# Errors

Service errors are mapped to status codes in one place (statusFor):
missing rows become 404, duplicates 409, permission errors 403, bad logins
401 and validation errors 400. Anything else is logged and returned as a
500 without internal detail.

# Edits

PATCH /article answers 200 for both outcomes. A clean edit or automatic
merge returns {"conflict": null}; an edit that needs a manual merge returns
the conflict, whose previous_version_id must be sent with the resolved
text together with resolve_conflict_id.
*/
package handlers
