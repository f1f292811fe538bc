// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"strings"
	"time"

	"github.com/bmildner/configstore/internal/sqlstore"
	"github.com/bmildner/configstore/internal/txnid"
)

// role classifies how a Txn relates to the store's single underlying
// transaction.
type role int

const (
	roleOutermostReader role = iota
	roleJoined
	roleOutermostWriter
	roleNestedWriter
)

// txnState is the store's single underlying transaction, shared by every
// Txn scope currently open against it. The C++ original models this as a
// weak reference held by the store plus a shared reference held by each
// scope; Go has no portable weak pointer with the same destructor-driven
// semantics, so this is an explicit refcount instead: the store keeps a
// plain pointer, each Txn increments/decrements refs, and the last one out
// clears the store's pointer.
type txnState struct {
	tx    *sqlstore.Tx
	refs  int
	start time.Time
}

// Txn is a handle to an open transaction scope. All reads and writes the
// Tree engine performs against a Store go through the Txn returned by
// Store.Reader or Store.Writer.
type Txn struct {
	store      *Store
	role       role
	savepoint  string // non-empty only for roleNestedWriter
	shared     *txnState
	done       bool
}

// Reader starts (or joins) a read scope. Callers must defer txn.Rollback(ctx)
// immediately after a successful call. Commit on the outermost reader ends
// its deferred transaction; on a reader that joined an existing transaction
// it only retires the scope.
func (s *Store) Reader(ctx context.Context) (*Txn, error) {
	if s.active == nil {
		tx, err := s.db.Begin(ctx, sqlstore.Deferred)
		if err != nil {
			if isBusyError(err) {
				s.metrics.ObserveBusyTimeout()
			}
			return nil, wrapError(InvalidQuery, err, "begin reader transaction")
		}
		s.active = &txnState{tx: tx, refs: 1, start: time.Now()}
		return &Txn{store: s, role: roleOutermostReader, shared: s.active}, nil
	}
	s.active.refs++
	return &Txn{store: s, role: roleJoined, shared: s.active}, nil
}

// Writer starts (or nests into) a write scope. Requesting a writer while a
// plain reader is active fails with InvalidTransaction: readers never
// upgrade in place.
func (s *Store) Writer(ctx context.Context) (*Txn, error) {
	if s.active == nil {
		tx, err := s.db.Begin(ctx, sqlstore.Immediate)
		if err != nil {
			if isBusyError(err) {
				s.metrics.ObserveBusyTimeout()
			}
			return nil, wrapError(InvalidInsert, err, "begin writer transaction")
		}
		s.active = &txnState{tx: tx, refs: 1, start: time.Now()}
		return &Txn{store: s, role: roleOutermostWriter, shared: s.active}, nil
	}

	if s.active.tx.Kind() != sqlstore.Immediate {
		return nil, newError(InvalidTransaction, "writer requested while a reader transaction is active")
	}

	name := txnid.New()
	if err := s.active.tx.Savepoint(ctx, name); err != nil {
		if isBusyError(err) {
			s.metrics.ObserveBusyTimeout()
		}
		return nil, wrapError(InvalidInsert, err, "create savepoint %q", name)
	}
	s.active.refs++
	return &Txn{store: s, role: roleNestedWriter, savepoint: name, shared: s.active}, nil
}

// isBusyError reports whether err stems from SQLite's busy timeout expiring
// while waiting for a lock, the only case this package treats as a distinct,
// metered failure mode rather than a generic DatabaseError.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// conn exposes the Conn the Tree engine should issue statements against.
func (t *Txn) conn() sqlstore.Conn { return t.shared.tx }

// isWriter reports whether this scope may mutate the tree.
func (t *Txn) isWriter() bool {
	return t.role == roleOutermostWriter || t.role == roleNestedWriter
}

// Commit finalizes this scope: the outermost writer commits the underlying
// transaction; a nested writer releases its savepoint; the outermost reader
// issues COMMIT to end its deferred transaction (nothing was written, so this
// only releases the read lock); a joined scope simply retires without
// touching the backing store.
func (t *Txn) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true

	var err error
	switch t.role {
	case roleOutermostWriter:
		err = t.shared.tx.Commit(ctx)
	case roleNestedWriter:
		err = t.shared.tx.Release(ctx, t.savepoint)
	case roleOutermostReader:
		err = t.shared.tx.Commit(ctx)
	case roleJoined:
		// nothing to do; the owning scope commits or rolls back.
	}
	t.release()
	if err != nil {
		return wrapError(DatabaseError, err, "commit transaction")
	}
	return nil
}

// Rollback aborts this scope if it has not already been committed. It is
// the Go idiom replacing the C++ destructor-triggered rollback: callers
// defer txn.Rollback(ctx) unconditionally right after opening the scope, and
// Rollback after a successful Commit is a safe no-op.
//
// A nested writer rolls back to (and keeps open) its own savepoint, then
// releases it, so the enclosing scope is left exactly as it was before this
// scope began. An outermost writer or reader rolls back the whole
// transaction. If the rollback statement itself fails, per policy this
// terminates the process: a failing rollback here means the backing
// connection is in an unknown state and continuing would risk silently
// committing partial writes.
func (t *Txn) Rollback(ctx context.Context) {
	if t.done {
		return
	}
	t.done = true

	var err error
	switch t.role {
	case roleNestedWriter:
		if rbErr := t.shared.tx.RollbackTo(ctx, t.savepoint); rbErr == nil {
			err = t.shared.tx.Release(ctx, t.savepoint)
		} else {
			err = rbErr
		}
	case roleOutermostWriter, roleOutermostReader:
		err = t.shared.tx.Rollback(ctx)
	case roleJoined:
		// nothing to do; the owning scope rolls back.
	}
	t.release()
	if err != nil {
		t.store.log.Fatalf("store: rollback failed, process state is unrecoverable: %v", err)
	}
}

// release decrements the shared refcount and, when it reaches zero, clears
// the store's pointer to the now-finished transaction so the next operation
// starts a fresh one. This is the Go-appropriate resolution of the C++
// weak-reference "expires when all scopes exit" behavior: explicit
// refcounting instead of a true weak pointer, since Go has no finalizer-safe
// weak reference with synchronous destructor semantics.
func (t *Txn) release() {
	t.shared.refs--
	if t.shared.refs == 0 {
		t.store.metrics.ObserveTxnDuration(time.Since(t.shared.start).Seconds())
		if t.store.active == t.shared {
			t.store.active = nil
		}
	}
}
