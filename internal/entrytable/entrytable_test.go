// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package entrytable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bmildner/configstore/internal/sqlstore"
)

func openTest(t *testing.T) *sqlstore.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlstore.Open(context.Background(), path, true, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertRootAndGetByID(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	row, found, err := GetByID(ctx, db, RootID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !found {
		t.Fatalf("root not found after InsertRoot")
	}
	if row.Parent != 0 || row.Name != "" || row.Type != Integer {
		t.Fatalf("unexpected root row: %+v", row)
	}
}

func TestInsertAndGetByParentName(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	id, err := Insert(ctx, db, RootID, "child", Text, 10, 0, "hello", nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	row, found, err := GetByParentName(ctx, db, RootID, "child")
	if err != nil {
		t.Fatalf("GetByParentName: %v", err)
	}
	if !found {
		t.Fatalf("expected to find inserted child")
	}
	if row.ID != id || row.Text != "hello" || row.Revision != 10 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestUpdateValueAndBumpRevision(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	id, err := Insert(ctx, db, RootID, "v", Integer, 1, 42, "", nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := UpdateValue(ctx, db, id, Text, 2, 0, "now text", nil); err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	row, _, err := GetByID(ctx, db, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Type != Text || row.Text != "now text" || row.Revision != 2 {
		t.Fatalf("unexpected row after UpdateValue: %+v", row)
	}

	if err := BumpRevision(ctx, db, id, 99); err != nil {
		t.Fatalf("BumpRevision: %v", err)
	}
	row2, _, err := GetByID(ctx, db, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row2.Revision != 99 {
		t.Fatalf("revision = %d, want 99", row2.Revision)
	}
}

func TestChildrenOfAndHasChild(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	if has, _ := HasChild(ctx, db, RootID); has {
		t.Fatalf("fresh store should have no children of root")
	}

	if _, err := Insert(ctx, db, RootID, "a", Integer, 1, 1, "", nil); err != nil {
		t.Fatalf("Insert a: %v", err)
	}
	if _, err := Insert(ctx, db, RootID, "b", Integer, 1, 2, "", nil); err != nil {
		t.Fatalf("Insert b: %v", err)
	}

	has, err := HasChild(ctx, db, RootID)
	if err != nil {
		t.Fatalf("HasChild: %v", err)
	}
	if !has {
		t.Fatalf("expected root to have children")
	}

	children, err := ChildrenOf(ctx, db, RootID)
	if err != nil {
		t.Fatalf("ChildrenOf: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestDeleteByID(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	id, err := Insert(ctx, db, RootID, "gone", Integer, 1, 1, "", nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := DeleteByID(ctx, db, id); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	_, found, err := GetByID(ctx, db, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if found {
		t.Fatalf("expected entry to be gone after DeleteByID")
	}
}

func TestExistsByIDs(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	id1, _ := Insert(ctx, db, RootID, "a", Integer, 1, 1, "", nil)
	id2, _ := Insert(ctx, db, RootID, "b", Integer, 1, 2, "", nil)

	found, err := ExistsByIDs(ctx, db, []int64{id1, id2, 9999})
	if err != nil {
		t.Fatalf("ExistsByIDs: %v", err)
	}
	if !found[id1] || !found[id2] || found[9999] {
		t.Fatalf("unexpected ExistsByIDs result: %+v", found)
	}
}

func TestAllRowsIterator(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := InsertRoot(ctx, db); err != nil {
		t.Fatalf("InsertRoot: %v", err)
	}
	if _, err := Insert(ctx, db, RootID, "a", Integer, 1, 1, "", nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	it, err := AllRows(ctx, db)
	if err != nil {
		t.Fatalf("AllRows: %v", err)
	}
	defer it.Close()

	count := 0
	for it.Next() {
		if _, err := it.Row(); err != nil {
			t.Fatalf("Row: %v", err)
		}
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows (root + a), got %d", count)
	}
}
