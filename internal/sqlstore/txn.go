// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlstore

import (
	"context"
	"database/sql"
	"strings"
)

// Kind selects whether a transaction acquires SQLite's write lock eagerly
// (Immediate) or lazily on first access (Deferred).
type Kind int

const (
	// Deferred transactions permit concurrent readers; used for read scopes.
	Deferred Kind = iota
	// Immediate transactions serialize writers; used for write scopes.
	Immediate
)

// Conn is the subset of *sql.Tx/*sql.Conn that entrytable and settingstable
// need. Both DB (outside any transaction) and Tx (inside one) implement it,
// so callers higher up never branch on whether a transaction is open.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Conn = (*DB)(nil)
	_ Conn = (*Tx)(nil)
)

// Tx is a deferred or immediate transaction obtained from DB.Begin. database/sql
// has no notion of BEGIN DEFERRED vs. BEGIN IMMEDIATE, so Tx does not wrap
// *sql.Tx at all: it issues the BEGIN/SAVEPOINT/COMMIT/ROLLBACK statements
// itself against the DB's single long-lived connection, which is exactly
// where the caller's own Execs/Queries land too.
type Tx struct {
	db   *DB
	kind Kind
	done bool
}

// Kind reports whether t is a deferred or immediate transaction.
func (t *Tx) Kind() Kind { return t.kind }

// Begin starts a new top-level transaction of the given kind.
func (d *DB) Begin(ctx context.Context, kind Kind) (*Tx, error) {
	stmt := "BEGIN DEFERRED"
	if kind == Immediate {
		stmt = "BEGIN IMMEDIATE"
	}
	if _, err := d.ExecContext(ctx, stmt); err != nil {
		return nil, err
	}
	return &Tx{db: d, kind: kind}, nil
}

// ExecContext runs query against the owning DB's connection, inside this
// transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.db.ExecContext(ctx, query, args...)
}

// QueryContext runs query against the owning DB's connection, inside this
// transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs query against the owning DB's connection, inside this
// transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.db.QueryRowContext(ctx, query, args...)
}

// Commit commits the whole transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.db.ExecContext(ctx, "COMMIT")
	return err
}

// Rollback aborts the whole transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.db.ExecContext(ctx, "ROLLBACK")
	return err
}

// Savepoint establishes a new named savepoint inside this transaction.
func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.db.ExecContext(ctx, "SAVEPOINT "+quoteIdent(name))
	return err
}

// Release keeps the changes made since the named savepoint, folding them
// into the enclosing scope.
func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.db.ExecContext(ctx, "RELEASE "+quoteIdent(name))
	return err
}

// RollbackTo discards the changes made since the named savepoint without
// ending the enclosing transaction. The savepoint itself remains open and
// must still be Released (or rolled back again) to pop it off SQLite's
// savepoint stack.
func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.db.ExecContext(ctx, "ROLLBACK TO "+quoteIdent(name))
	return err
}

// quoteIdent double-quotes name as a SQL identifier. Savepoint names in this
// package always come from internal/txnid (a fixed "sp_"+hex alphabet), so
// this is a defensive measure rather than a real escaping boundary.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
