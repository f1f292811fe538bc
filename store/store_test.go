// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Config{Path: path, Create: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateThenGet(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "a.b.c", NewInteger(42)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.GetInteger(ctx, "a.b.c")
	if err != nil {
		t.Fatalf("GetInteger: %v", err)
	}
	if got != 42 {
		t.Fatalf("GetInteger = %d, want 42", got)
	}

	if err := s.CheckDataConsistency(ctx); err != nil {
		t.Fatalf("CheckDataConsistency after successful write: %v", err)
	}
}

func TestCreateCollision(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "x", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, "x", NewInteger(2))
	if !IsNameAlreadyExists(err) {
		t.Fatalf("Create collision: got %v, want NameAlreadyExists", err)
	}
}

func TestRoundTripDelete(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "n", NewText("hi")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "n", false); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	exists, err := s.Exists(ctx, "n")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("Exists after Delete = true, want false")
	}
}

func TestSetChangesTypeAndValue(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "v", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Set(ctx, "v", NewText("now text")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := s.GetString(ctx, "v")
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if got != "now text" {
		t.Fatalf("GetString = %q, want %q", got, "now text")
	}

	_, err = s.GetInteger(ctx, "v")
	if !IsWrongValueType(err) {
		t.Fatalf("GetInteger after Set to Text: got %v, want WrongValueType", err)
	}
}

func TestRevisionMonotonicity(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "a.b.c", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	before := map[string]Revision{}
	for _, name := range []string{"", "a", "a.b"} {
		rev, err := s.GetRevision(ctx, name)
		if err != nil {
			t.Fatalf("GetRevision(%q): %v", name, err)
		}
		before[name] = rev
	}

	if err := s.Set(ctx, "a.b.c", NewInteger(2)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for _, name := range []string{"", "a", "a.b"} {
		after, err := s.GetRevision(ctx, name)
		if err != nil {
			t.Fatalf("GetRevision(%q): %v", name, err)
		}
		if after.Revision == before[name].Revision {
			t.Fatalf("GetRevision(%q) did not change across a write: %+v", name, after)
		}
	}
}

func TestReadOnlyOpsDoNotChangeRevision(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "a.b", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	before, err := s.GetRevision(ctx, "a.b")
	if err != nil {
		t.Fatalf("GetRevision: %v", err)
	}

	if _, err := s.Exists(ctx, "a.b"); err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if _, err := s.HasChild(ctx, "a.b"); err != nil {
		t.Fatalf("HasChild: %v", err)
	}
	if _, err := s.GetChildren(ctx, "a"); err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if _, err := s.GetType(ctx, "a.b"); err != nil {
		t.Fatalf("GetType: %v", err)
	}

	after, err := s.GetRevision(ctx, "a.b")
	if err != nil {
		t.Fatalf("GetRevision: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("revision changed after read-only ops (-before +after):\n%s", diff)
	}
}

func TestIsValidName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"", false},
		{"a", true},
		{".a", false},
		{"a.", false},
		{"a..b", false},
		{"a.b.c", true},
		{".", false},
	}
	for _, c := range cases {
		if got := IsValidName(c.name, '.'); got != c.want {
			t.Errorf("IsValidName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSetOrCreateIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.SetOrCreate(ctx, "a.b", NewInteger(7)); err != nil {
		t.Fatalf("SetOrCreate (create): %v", err)
	}
	if err := s.SetOrCreate(ctx, "a.b", NewInteger(7)); err != nil {
		t.Fatalf("SetOrCreate (set): %v", err)
	}
	got, err := s.GetInteger(ctx, "a.b")
	if err != nil {
		t.Fatalf("GetInteger: %v", err)
	}
	if got != 7 {
		t.Fatalf("GetInteger = %d, want 7", got)
	}
}

func TestUniquePathInvariant(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "p.q", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "p.q", NewInteger(2)); !IsNameAlreadyExists(err) {
		t.Fatalf("second Create under same (parent,name): got %v, want NameAlreadyExists", err)
	}
}

func TestRecursiveDeleteRemovesSubtree(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "a.b.c", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, "a.b.d", NewInteger(2)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete(ctx, "a.b", false); !IsHasChildEntry(err) {
		t.Fatalf("non-recursive Delete with children: got %v, want HasChildEntry", err)
	}

	if err := s.Delete(ctx, "a.b", true); err != nil {
		t.Fatalf("recursive Delete: %v", err)
	}
	if exists, _ := s.Exists(ctx, "a.b.c"); exists {
		t.Fatalf("a.b.c still exists after recursive delete of a.b")
	}
	if exists, _ := s.Exists(ctx, "a"); !exists {
		t.Fatalf("a should still exist after deleting only its child a.b")
	}
}

func TestGetIntegerOrFallback(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	got, err := s.GetIntegerOr(ctx, "missing", 99)
	if err != nil {
		t.Fatalf("GetIntegerOr: %v", err)
	}
	if got != 99 {
		t.Fatalf("GetIntegerOr = %d, want 99", got)
	}
}

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not registered", name)
	return nil
}

func TestMetricsObserveRealOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), Config{Path: path, Create: true, Registerer: reg})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Create(ctx, "a.b.c", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.GetInteger(ctx, "a.b.c"); err != nil {
		t.Fatalf("GetInteger: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	writes := findMetric(t, families, "configstore_writes_total")
	if got := writes.Metric[0].GetCounter().GetValue(); got < 1 {
		t.Fatalf("configstore_writes_total = %v, want >= 1", got)
	}

	reads := findMetric(t, families, "configstore_reads_total")
	if got := reads.Metric[0].GetCounter().GetValue(); got < 1 {
		t.Fatalf("configstore_reads_total = %v, want >= 1", got)
	}

	autoViv := findMetric(t, families, "configstore_auto_vivifications_total")
	if got := autoViv.Metric[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("configstore_auto_vivifications_total = %v, want 2 (a, a.b)", got)
	}

	txnDuration := findMetric(t, families, "configstore_txn_duration_seconds")
	if got := txnDuration.Metric[0].GetHistogram().GetSampleCount(); got == 0 {
		t.Fatalf("configstore_txn_duration_seconds recorded no samples")
	}
}

func TestSetNewDelimiterRejectsCollision(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if err := s.Create(ctx, "a-b", NewInteger(1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.SetNewDelimiter(ctx, '-'); !hasCode(err, InvalidDelimiter) {
		t.Fatalf("SetNewDelimiter('-'): got %v, want InvalidDelimiter", err)
	}
	if err := s.SetNewDelimiter(ctx, '/'); err != nil {
		t.Fatalf("SetNewDelimiter('/'): %v", err)
	}
	if got := s.Delimiter(); got != '/' {
		t.Fatalf("Delimiter() = %q, want '/'", got)
	}
}
