// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections and manages schema migrations.

# Connections

Open picks the driver from the dialect (lib/pq for postgres, modernc.org/sqlite
for sqlite) and pings the server:

	conn, err := db.Open(ctx, db.Postgres, cfg.DatabaseURL)

SQLite connections always run with foreign keys enabled.

# Migrations

Migrations are embedded SQL files, one directory per dialect:

	migrations/postgres/0001_create_schema.sql
	migrations/postgres/0002_conflict_creator_cascade.sql
	migrations/postgres/0003_article_approval.sql

Each file has a "-- +migrate Up" and a "-- +migrate Down" section. Versions
start at 1 and have no gaps. Applied versions are recorded in
schema_migrations inside the same transaction as the schema change, so a
failed migration leaves nothing behind.

	m, err := db.NewMigrator(conn, db.Postgres)
	applied, err := m.Up(ctx)
	reverted, err := m.Down(ctx, 1)

CreateSchema is the server start shortcut for Up.

# Tables

	person 1──1 local_user
	person 1──* edit
	person 1──* conflict        (conflict_creator_id_fkey, from version 2)
	person *──* instance        (via instance_follow)
	instance 1──* article
	article 1──* edit
	article 1──* conflict

All foreign keys cascade on update and delete. Before version 2,
conflict.creator_id referenced local_user(id) without cascading.
*/
package db
