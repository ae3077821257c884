// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all server settings:

	cfg, err := cliparse.ParseFlags(os.Args[2:])

Values are resolved in order: defaults, then environment variables (read
with caarlos0/env), then flags. LoadDotEnv may be called first to fill the
environment from a .env file; variables already set are not replaced.

# Flags and Environment Variables

	-b          IBIS_BIND      Listen address (default 127.0.0.1:8081)
	-d          DATABASE_URL   Database URL (required)
	-t          DATABASE_TYPE  sqlite or postgres (default sqlite)
	-domain     IBIS_DOMAIN    Public domain (default: the bind address)
	-protocol   IBIS_PROTOCOL  http or https (default http)
	-log-level  LOG_LEVEL      debug, info, warn or error (default info)
	-c          IBIS_CONFIG    YAML options file

# Options File

Instance settings live in an optional YAML file:

	registration_open: true
	article_approval: false
	setup:
	  admin_username: ibis
	  admin_password: ibis

Keys missing from the file keep their defaults. The setup block is only
used when the database has no local instance yet.

# Dev Runner

ParseDevFlags reads the DevConfig for "ibis dev" from IBIS_BIND, the
IBIS_DEV_* variables and the flags -b, -frontend, -backend, -stale,
-watch, -debounce and -stop-timeout. The token {bind} in the frontend
command is replaced by the backend address.
*/
package cliparse
