// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package entrytable is the persistent representation of the entry tree: a
// thin CRUD layer over the "entries" table. It carries no tree semantics
// (path resolution, auto-vivification, revision propagation all live in the
// store package) — it only knows how to turn rows into Go values and back.
//
// This is also where the "parameter binder and column extractor" capability
// traits from the design notes live: encodeValue and scanRow are the two
// halves of that trait, one per Type variant.
package entrytable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/bmildner/configstore/internal/sqlstore"
)

// Type is the on-disk type tag. The wire values are fixed by the external
// schema and must never change.
type Type int

const (
	Integer Type = 1
	Text    Type = 2
	Blob    Type = 3
)

// RootID is the reserved id of the tree's root entry.
const RootID int64 = 0

// Row is one entries row, decoded into Go-native fields. Only the field
// matching Type is meaningful; the others are zero.
type Row struct {
	ID       int64
	Parent   int64
	Name     string
	Type     Type
	Revision int64
	Integer  int64
	Text     string
	Blob     []byte
}

func encodeValue(r Row) any {
	switch r.Type {
	case Integer:
		return r.Integer
	case Text:
		return r.Text
	case Blob:
		if len(r.Blob) == 0 {
			return nil
		}
		return r.Blob
	default:
		return nil
	}
}

func decodeValue(row *Row, raw any) error {
	switch row.Type {
	case Integer:
		switch v := raw.(type) {
		case int64:
			row.Integer = v
		case nil:
			row.Integer = 0
		default:
			return fmt.Errorf("entrytable: id %d: unexpected storage class %T for an integer value", row.ID, raw)
		}
	case Text:
		switch v := raw.(type) {
		case string:
			row.Text = v
		case []byte:
			row.Text = string(v)
		case nil:
			row.Text = ""
		default:
			return fmt.Errorf("entrytable: id %d: unexpected storage class %T for a text value", row.ID, raw)
		}
	case Blob:
		switch v := raw.(type) {
		case []byte:
			row.Blob = v
		case nil:
			row.Blob = nil
		default:
			return fmt.Errorf("entrytable: id %d: unexpected storage class %T for a blob value", row.ID, raw)
		}
	default:
		// Unrecognized type tag. The caller (store package) is responsible
		// for turning this into a store.UnknownEntryType error; this layer
		// just refuses to guess which field to populate.
	}
	return nil
}

func scanRow(scan func(dest ...any) error) (Row, error) {
	var (
		row Row
		typ int64
		raw any
	)
	if err := scan(&row.ID, &row.Parent, &row.Revision, &row.Name, &typ, &raw); err != nil {
		return Row{}, err
	}
	row.Type = Type(typ)
	if err := decodeValue(&row, raw); err != nil {
		return Row{}, err
	}
	return row, nil
}

const selectColumns = "id, parent, revision, name, type, value"

// InsertRoot inserts the fixed root row (id=0, parent=0, name="", type=Integer,
// value=0, revision=0). Called once, the first time a new store is opened.
func InsertRoot(ctx context.Context, conn sqlstore.Conn) error {
	_, err := conn.ExecContext(ctx,
		"INSERT INTO entries (id, parent, revision, name, type, value) VALUES (0, 0, 0, '', ?, 0)",
		int64(Integer))
	return err
}

// Insert creates a new entry under parent and returns its freshly assigned id.
func Insert(ctx context.Context, conn sqlstore.Conn, parent int64, name string, typ Type, revision int64, integer int64, text string, blob []byte) (int64, error) {
	row := Row{Parent: parent, Name: name, Type: typ, Revision: revision, Integer: integer, Text: text, Blob: blob}
	result, err := conn.ExecContext(ctx,
		"INSERT INTO entries (parent, revision, name, type, value) VALUES (?, ?, ?, ?, ?)",
		row.Parent, row.Revision, row.Name, int64(row.Type), encodeValue(row))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateValue replaces the type and value of an existing entry and sets its
// revision to newRevision in the same statement (the "update that also
// writes type/value" that bumps the terminal entry's own revision).
func UpdateValue(ctx context.Context, conn sqlstore.Conn, id int64, typ Type, newRevision int64, integer int64, text string, blob []byte) error {
	row := Row{ID: id, Type: typ, Integer: integer, Text: text, Blob: blob}
	_, err := conn.ExecContext(ctx,
		"UPDATE entries SET type = ?, value = ?, revision = ? WHERE id = ?",
		int64(typ), encodeValue(row), newRevision, id)
	return err
}

// BumpRevision sets id's revision column directly, used for ancestors whose
// type/value is unaffected by the write that triggered the bump.
func BumpRevision(ctx context.Context, conn sqlstore.Conn, id int64, newRevision int64) error {
	_, err := conn.ExecContext(ctx, "UPDATE entries SET revision = ? WHERE id = ?", newRevision, id)
	return err
}

// GetByID fetches the row for id.
func GetByID(ctx context.Context, conn sqlstore.Conn, id int64) (Row, bool, error) {
	r := conn.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM entries WHERE id = ?", id)
	row, err := scanRow(r.Scan)
	if err != nil {
		if isNoRows(err) {
			return Row{}, false, nil
		}
		return Row{}, false, err
	}
	return row, true, nil
}

// GetByParentName fetches the row addressed by (parent, name), the single
// lookup ResolvePath performs per path segment.
func GetByParentName(ctx context.Context, conn sqlstore.Conn, parent int64, name string) (Row, bool, error) {
	r := conn.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM entries WHERE parent = ? AND name = ?", parent, name)
	row, err := scanRow(r.Scan)
	if err != nil {
		if isNoRows(err) {
			return Row{}, false, nil
		}
		return Row{}, false, err
	}
	return row, true, nil
}

// ChildrenOf returns the immediate children of parent in the backing store's
// natural row order (no ORDER BY: GetChildren is specified to return rows in
// that order, not lexicographic order). The root row, whose parent column is
// its own id, is never listed as a child of itself.
func ChildrenOf(ctx context.Context, conn sqlstore.Conn, parent int64) ([]Row, error) {
	rows, err := conn.QueryContext(ctx, "SELECT "+selectColumns+" FROM entries WHERE parent = ? AND id != parent", parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// HasChild reports whether parent has at least one child.
func HasChild(ctx context.Context, conn sqlstore.Conn, parent int64) (bool, error) {
	var exists int64
	err := conn.QueryRowContext(ctx, "SELECT 1 FROM entries WHERE parent = ? AND id != parent LIMIT 1", parent).Scan(&exists)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteByID removes a single row. Callers are responsible for ordering
// deletions bottom-up when removing a subtree.
func DeleteByID(ctx context.Context, conn sqlstore.Conn, id int64) error {
	_, err := conn.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	return err
}

// ExistsByIDs builds a single "SELECT id FROM entries WHERE id IN (...)"
// query with go-sqlbuilder (the one query in this package whose shape is
// genuinely dynamic: the number of ids varies per call) and returns the
// subset of ids that exist.
func ExistsByIDs(ctx context.Context, conn sqlstore.Conn, ids []int64) (map[int64]bool, error) {
	if len(ids) == 0 {
		return map[int64]bool{}, nil
	}
	sb := sqlbuilder.NewSelectBuilder()
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	sb.Select("id").From("entries").Where(sb.In("id", args...))
	query, sbArgs := sb.Build()

	rows, err := conn.QueryContext(ctx, query, sbArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// AllRows streams every row in the table (including the root), in whatever
// order the backing store returns them, for the consistency checker's full
// scan. The caller must fully drain and close the returned iterator.
type RowIterator struct {
	rows *sql.Rows
}

func AllRows(ctx context.Context, conn sqlstore.Conn) (RowIterator, error) {
	rows, err := conn.QueryContext(ctx, "SELECT "+selectColumns+" FROM entries")
	if err != nil {
		return RowIterator{}, err
	}
	return RowIterator{rows: rows}, nil
}

func (it RowIterator) Next() bool {
	return it.rows.Next()
}

func (it RowIterator) Row() (Row, error) {
	return scanRow(it.rows.Scan)
}

func (it RowIterator) Err() error {
	return it.rows.Err()
}

func (it RowIterator) Close() error {
	return it.rows.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
