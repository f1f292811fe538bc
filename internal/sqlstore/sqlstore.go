// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sqlstore is the backing-store adapter. It owns the single
// *sql.DB/*sql.Conn pair backing one store.Store, applies the required
// pragmas, creates the schema, and hands out deferred/immediate transactions
// with named savepoints on top of it. Everything above this package issues
// its statements through the Conn interface; entrytable and settingstable
// import database/sql only for its result types and sql.ErrNoRows.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/bmildner/configstore/log"
)

// BusyTimeoutMillis is the duration SQLite waits on a locked database before
// giving up, per the concurrency model: the only blocking/retry behavior
// this package exposes.
const BusyTimeoutMillis = 15000

// schemaSQL creates the Settings and Entries tables plus their indexes if
// they are not already present. Pragmas that must be set before any table
// exists (encoding, auto_vacuum) are applied by Open before this runs.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS settings (
	name  TEXT PRIMARY KEY,
	type  INTEGER NOT NULL,
	value BLOB
);

CREATE TABLE IF NOT EXISTS entries (
	id       INTEGER PRIMARY KEY,
	parent   INTEGER NOT NULL REFERENCES entries(id),
	revision INTEGER NOT NULL,
	name     TEXT NOT NULL,
	type     INTEGER NOT NULL,
	value    BLOB
);

CREATE INDEX IF NOT EXISTS entries_parent_idx ON entries(parent);
CREATE INDEX IF NOT EXISTS entries_name_idx ON entries(name);
CREATE UNIQUE INDEX IF NOT EXISTS entries_parent_name_idx ON entries(parent, name);
`

// pragmas is executed once per Open, in order, after the file exists but
// (for auto_vacuum/encoding) before the schema is created.
var pragmas = []string{
	fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMillis),
	"PRAGMA encoding = 'UTF-8'",
	"PRAGMA auto_vacuum = FULL",
	"PRAGMA synchronous = FULL",
	"PRAGMA foreign_keys = TRUE",
	"PRAGMA journal_mode = DELETE",
	"PRAGMA locking_mode = NORMAL",
	"PRAGMA recursive_triggers = TRUE",
	"PRAGMA secure_delete = TRUE",
}

// DB is the single open handle a store.Store owns: one *sql.Conn (the pool
// behind it is capped at one connection so "the Store owns one open database
// handle" is a literal, not aspirational, property) plus the prepared
// statement cache shared by every caller that holds it.
type DB struct {
	pool  *sql.DB
	conn  *sql.Conn
	cache *stmtCache
	log   log.Logger
}

// Open opens (or, if create is true and it does not exist, creates) the
// database file at path, applies pragmas, and ensures the schema exists.
func Open(ctx context.Context, path string, create bool, logger log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("sqlstore: open %q: %w", path, err)
		}
	}

	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %q: %w", path, err)
	}
	// A config store is owned by exactly one goroutine at a time (see the
	// store package doc); pinning the pool to a single connection makes
	// that contract a property of the driver, not just a convention, and
	// lets BEGIN IMMEDIATE/DEFERRED and SAVEPOINT be plain statements
	// executed on a connection that never changes underneath a Tx.
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)

	conn, err := pool.Conn(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlstore: acquire connection: %w", err)
	}

	db := &DB{pool: pool, conn: conn, cache: newStmtCache(), log: logger}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}

	return db, nil
}

// Close releases the prepared statement cache and the underlying connection.
func (d *DB) Close() error {
	d.cache.Close()
	if err := d.conn.Close(); err != nil {
		d.pool.Close()
		return err
	}
	return d.pool.Close()
}

// ExecContext executes query against the store's single connection, using
// the cached prepared statement for query's SQL text when one exists.
func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	stmt, err := d.cache.get(ctx, d.conn, query)
	if err != nil {
		d.log.Debugf("sqlstore: prepare failed, falling back to ad-hoc exec: %v", err)
		return d.conn.ExecContext(ctx, query, args...)
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext is the read counterpart of ExecContext.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := d.cache.get(ctx, d.conn, query)
	if err != nil {
		d.log.Debugf("sqlstore: prepare failed, falling back to ad-hoc query: %v", err)
		return d.conn.QueryContext(ctx, query, args...)
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext is the single-row convenience form of QueryContext.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	stmt, err := d.cache.get(ctx, d.conn, query)
	if err != nil {
		d.log.Debugf("sqlstore: prepare failed, falling back to ad-hoc query: %v", err)
		return d.conn.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}

// IntegrityCheck runs SQLite's own "PRAGMA integrity_check" and
// "PRAGMA foreign_key_check", surfacing any row they report as an error.
func (d *DB) IntegrityCheck(ctx context.Context) error {
	rows, err := d.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return err
		}
		if msg != "ok" {
			return fmt.Errorf("sqlstore: integrity_check: %s", msg)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fkRows, err := d.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return err
	}
	defer fkRows.Close()
	if fkRows.Next() {
		return fmt.Errorf("sqlstore: foreign_key_check reported a violation")
	}
	return fkRows.Err()
}
