// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	root := Command(nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", dbPath}, args...))
	err := root.Execute()
	require.NoError(t, err)
	return out.String()
}

func newRoot(dbPath string, args ...string) *cobra.Command {
	root := Command(nil)
	root.SetArgs(append([]string{"--db", dbPath}, args...))
	return root
}

func TestSetThenGetRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a.b", "hello")
	out := run(t, db, "get", "a.b")
	require.Equal(t, "hello\n", out)
}

func TestSetIntegerThenGet(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "--integer", "n", "42")
	out := run(t, db, "get", "n")
	require.Equal(t, "42\n", out)
}

func TestSetBlobThenGet(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "--blob", "b", "deadbeef")
	out := run(t, db, "get", "b")
	require.Equal(t, "deadbeef\n", out)
}

func TestOnlyCreateFailsOnExisting(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "--only-create", "x", "1")
	root := newRoot(db, "set", "--only-create", "x", "2")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	require.Error(t, root.Execute())
}

func TestDeleteRemovesEntry(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a", "v")
	run(t, db, "delete", "a")

	root := newRoot(db, "get", "a")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	require.Error(t, root.Execute())
}

func TestLsListsChildren(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a.b", "1")
	run(t, db, "set", "a.c", "2")

	out := run(t, db, "ls", "a")
	require.Contains(t, out, "b")
	require.Contains(t, out, "c")
}

func TestLsFilterNarrowsChildren(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a.foo", "1")
	run(t, db, "set", "a.bar", "2")

	out := run(t, db, "ls", "--filter", "fo*", "a")
	require.Contains(t, out, "foo")
	require.NotContains(t, out, "bar")
}

func TestRevPrintsRevision(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a", "1")
	out := run(t, db, "rev", "a")
	require.Contains(t, out, "revision=")
}

func TestCheckReportsConsistentStore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "a.b.c", "v")
	out := run(t, db, "check")
	require.Contains(t, out, "consistent")
}

func TestVersionPrintsSchemaVersion(t *testing.T) {
	// version opens no store and has no --db flag, so run's --db prefix is not used.
	root := Command(nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "Schema version:")
}

func TestCustomDelimiterIsRespected(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cfg.db")

	run(t, db, "set", "--create", "--delimiter", "/", "a/b", "v")
	out := run(t, db, "--delimiter", "/", "get", "a/b")
	require.Equal(t, "v\n", out)
}
