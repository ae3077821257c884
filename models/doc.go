// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - RegisterUserRequest, LoginUserRequest: username, password
  - CreateArticleRequest: title, text, summary
  - EditArticleRequest: article_id, new_text, summary, previous_version_id,
    resolve_conflict_id
  - ForkArticleRequest, ProtectArticleRequest, ApproveArticleRequest
  - DeleteConflictRequest, FollowInstanceRequest

# Domain Types

  - Person, LocalUser, LocalUserView: accounts
  - Instance, InstanceView: this wiki and the ones it knows
  - Article, ArticleView: article text with its edit history
  - Edit, EditView: one stored diff with its creator
  - Conflict, APIConflict: an edit that could not be merged automatically

Secrets (password hashes, private keys) are tagged json:"-" and never leave
the server.

# Edit Versions

EditVersion is a UUID made from the first 16 bytes of the SHA-256 of an
edit diff. DefaultEditVersion, the version of the empty diff, stands for an
article without edits:

	DefaultEditVersion().Hash() // "e3b0c44298fc1c149afbf4c8996fb924"

Versions travel as UUID strings in JSON and in the database.
*/
package models
