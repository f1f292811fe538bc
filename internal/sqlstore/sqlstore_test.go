// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(context.Background(), path, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenCreatesSchema(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := db.IntegrityCheck(ctx); err != nil {
		t.Fatalf("IntegrityCheck: %v", err)
	}

	var count int
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type='table'").Scan(&count)
	if err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count < 2 {
		t.Fatalf("expected at least 2 tables (settings, entries), got %d", count)
	}
}

func TestOpenWithoutCreateFailsOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(context.Background(), path, false, nil)
	if err == nil {
		t.Fatalf("Open(create=false) on a missing file should fail")
	}
}

func TestStatementCacheReusesPreparedStatement(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	// Open has already cached the statements it ran (pragmas, schema).
	before := len(db.cache.stmts)
	for i := 0; i < 3; i++ {
		if _, err := db.ExecContext(ctx, "INSERT INTO settings (name, type, value) VALUES (?, 1, 0)", "k"+string(rune('0'+i))); err != nil {
			t.Fatalf("ExecContext iteration %d: %v", i, err)
		}
	}
	if added := len(db.cache.stmts) - before; added != 1 {
		t.Fatalf("expected exactly one cached statement for the repeated INSERT text, got %d", added)
	}
}

func TestBeginDeferredAndImmediate(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx, Deferred)
	if err != nil {
		t.Fatalf("Begin(Deferred): %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx2, err := db.Begin(ctx, Immediate)
	if err != nil {
		t.Fatalf("Begin(Immediate): %v", err)
	}
	if err := tx2.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestSavepointRollbackTo(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx, Immediate)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, "INSERT INTO settings (name, type, value) VALUES ('a', 1, 1)"); err != nil {
		t.Fatalf("insert a: %v", err)
	}

	if err := tx.Savepoint(ctx, "sp_test"); err != nil {
		t.Fatalf("Savepoint: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO settings (name, type, value) VALUES ('b', 1, 2)"); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if err := tx.RollbackTo(ctx, "sp_test"); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
	if err := tx.Release(ctx, "sp_test"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT count(*) FROM settings").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row surviving the savepoint rollback, got %d", count)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}
