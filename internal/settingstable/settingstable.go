// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package settingstable is the persistent representation of the store-wide
// settings table: a flat name->typed-value map holding the schema version
// and the configured path delimiter. Like entrytable, it carries no policy
// (what the recognized keys mean, what happens on a version mismatch) —
// that lives in the store package.
package settingstable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmildner/configstore/internal/sqlstore"
)

// Type mirrors entrytable.Type; settings rows use the same type-tag scheme.
type Type int

const (
	Integer Type = 1
	Text    Type = 2
	Blob    Type = 3
)

// Recognized setting names.
const (
	MajorVersionKey  = "MajorVersion"
	MinorVersionKey  = "MinorVersion"
	NameDelimiterKey = "NameDelimiter"
)

// Row is one settings row decoded into Go-native fields.
type Row struct {
	Name    string
	Type    Type
	Integer int64
	Text    string
	Blob    []byte
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
		default:
			return fmt.Errorf("settingstable: %q: unexpected storage class %T for an integer value", row.Name, raw)
		}
	case Text:
		switch v := raw.(type) {
		case string:
			row.Text = v
		case []byte:
			row.Text = string(v)
		case nil:
		default:
			return fmt.Errorf("settingstable: %q: unexpected storage class %T for a text value", row.Name, raw)
		}
	case Blob:
		switch v := raw.(type) {
		case []byte:
			row.Blob = v
		case nil:
		default:
			return fmt.Errorf("settingstable: %q: unexpected storage class %T for a blob value", row.Name, raw)
		}
	}
	return nil
}

// Get fetches the row named name, if present.
func Get(ctx context.Context, conn sqlstore.Conn, name string) (Row, bool, error) {
	var (
		row Row
		typ int64
		raw any
	)
	row.Name = name
	err := conn.QueryRowContext(ctx, "SELECT type, value FROM settings WHERE name = ?", name).Scan(&typ, &raw)
	if err != nil {
		if isNoRows(err) {
			return Row{}, false, nil
		}
		return Row{}, false, err
	}
	row.Type = Type(typ)
	if err := decodeValue(&row, raw); err != nil {
		return Row{}, false, err
	}
	return row, true, nil
}

// GetInteger is a convenience wrapper for settings whose value is known to
// be an integer, such as the major and minor version keys. It fails if the
// stored setting has a different type.
func GetInteger(ctx context.Context, conn sqlstore.Conn, name string) (int64, bool, error) {
	row, ok, err := Get(ctx, conn, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if row.Type != Integer {
		return 0, true, fmt.Errorf("settingstable: %q: expected an integer setting, found type %d", name, row.Type)
	}
	return row.Integer, true, nil
}

// GetText is the text counterpart of GetInteger.
func GetText(ctx context.Context, conn sqlstore.Conn, name string) (string, bool, error) {
	row, ok, err := Get(ctx, conn, name)
	if err != nil || !ok {
		return "", ok, err
	}
	if row.Type != Text {
		return "", true, fmt.Errorf("settingstable: %q: expected a text setting, found type %d", name, row.Type)
	}
	return row.Text, true, nil
}

// SetInteger upserts name to an integer value.
func SetInteger(ctx context.Context, conn sqlstore.Conn, name string, value int64) error {
	return set(ctx, conn, Row{Name: name, Type: Integer, Integer: value})
}

// SetText upserts name to a text value.
func SetText(ctx context.Context, conn sqlstore.Conn, name string, value string) error {
	return set(ctx, conn, Row{Name: name, Type: Text, Text: value})
}

// SetBlob upserts name to a blob value.
func SetBlob(ctx context.Context, conn sqlstore.Conn, name string, value []byte) error {
	return set(ctx, conn, Row{Name: name, Type: Blob, Blob: value})
}

func set(ctx context.Context, conn sqlstore.Conn, row Row) error {
	_, err := conn.ExecContext(ctx,
		`INSERT INTO settings (name, type, value) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET type = excluded.type, value = excluded.value`,
		row.Name, int64(row.Type), encodeValue(row))
	return err
}

// Delete removes name if present; deleting an absent setting is a no-op.
func Delete(ctx context.Context, conn sqlstore.Conn, name string) error {
	_, err := conn.ExecContext(ctx, "DELETE FROM settings WHERE name = ?", name)
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
