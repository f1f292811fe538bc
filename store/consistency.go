// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"

	"github.com/bmildner/configstore/internal/entrytable"
)

// CheckDataConsistency runs a read-only scan of the whole entry table and
// verifies:
//  1. no local name contains the current delimiter;
//  2. every non-root id appears exactly once;
//  3. every non-root id is reachable from the root via parent links, each
//     visited exactly once.
//
// It fails fast on the first violation it observes (naming the offending
// id) rather than accumulating a full report.
func (s *Store) CheckDataConsistency(ctx context.Context) error {
	txn, err := s.Reader(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	byID := make(map[int64]entrytable.Row)
	childrenOf := make(map[int64][]int64)

	it, err := entrytable.AllRows(ctx, txn.conn())
	if err != nil {
		return wrapError(InvalidQuery, err, "scan entries")
	}
	defer it.Close()

	sawRoot := false
	for it.Next() {
		row, err := it.Row()
		if err != nil {
			return wrapError(InvalidQuery, err, "scan entries")
		}

		if _, dup := byID[row.ID]; dup {
			s.metrics.ObserveConsistencyFailure()
			s.log.Errorf("store: consistency check: duplicate id %d", row.ID)
			return newError(EntryIdNotUnique, "id %d appears more than once", row.ID)
		}
		byID[row.ID] = row

		if row.ID == entrytable.RootID {
			sawRoot = true
			if row.Parent != entrytable.RootID || row.Name != "" || row.Type != entrytable.Integer || row.Integer != 0 {
				s.metrics.ObserveConsistencyFailure()
				s.log.Errorf("store: consistency check: root entry is malformed: parent=%d name=%q type=%d value=%d",
					row.Parent, row.Name, int(row.Type), row.Integer)
				return newError(InvalidRootEntry, "root entry (id=0) does not match its fixed shape")
			}
			continue
		}

		if _, err := rowType(row.Type); err != nil {
			s.metrics.ObserveConsistencyFailure()
			s.log.Errorf("store: consistency check: entry %d has unknown type tag %d", row.ID, int(row.Type))
			return err
		}

		for i := 0; i < len(row.Name); i++ {
			if row.Name[i] == s.delimiter {
				s.metrics.ObserveConsistencyFailure()
				s.log.Errorf("store: consistency check: entry %d name %q contains the delimiter", row.ID, row.Name)
				return newError(InvalidEntryNameFound, "entry %d name %q contains delimiter %q", row.ID, row.Name, string(s.delimiter))
			}
		}

		childrenOf[row.Parent] = append(childrenOf[row.Parent], row.ID)
	}
	if err := it.Err(); err != nil {
		return wrapError(InvalidQuery, err, "scan entries")
	}
	if !sawRoot {
		s.metrics.ObserveConsistencyFailure()
		return newError(RootEntryMissing, "root entry (id=0) not found")
	}

	if err := s.checkParentsExist(ctx, txn, byID); err != nil {
		return err
	}

	visited := make(map[int64]bool, len(byID))
	stack := []int64{entrytable.RootID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			s.metrics.ObserveConsistencyFailure()
			s.log.Errorf("store: consistency check: entry %d reached more than once", id)
			return newError(InvalidEntryLinking, "entry %d is reachable through more than one path", id)
		}
		visited[id] = true

		for _, child := range childrenOf[id] {
			stack = append(stack, child)
		}
	}

	for id := range byID {
		if id == entrytable.RootID {
			continue
		}
		if !visited[id] {
			s.metrics.ObserveConsistencyFailure()
			s.log.Errorf("store: consistency check: entry %d is unreachable from root", id)
			return newError(AbandonedEntry, "entry %d is not reachable from the root", id)
		}
	}

	return nil
}

// checkParentsExist batch-verifies, via a single dynamic "IN (...)" query
// (entrytable.ExistsByIDs) rather than the in-memory byID map the reachability
// pass already built, that every referenced parent id actually exists. This
// is a second, independent check of invariant 2 straight against the backing
// store rather than against what this scan happened to collect in memory.
func (s *Store) checkParentsExist(ctx context.Context, txn *Txn, byID map[int64]entrytable.Row) error {
	seen := make(map[int64]bool)
	var parents []int64
	for id, row := range byID {
		if id == entrytable.RootID {
			continue
		}
		if !seen[row.Parent] {
			seen[row.Parent] = true
			parents = append(parents, row.Parent)
		}
	}

	exists, err := entrytable.ExistsByIDs(ctx, txn.conn(), parents)
	if err != nil {
		return wrapError(InvalidQuery, err, "check parent ids exist")
	}
	for _, p := range parents {
		if p == entrytable.RootID {
			continue
		}
		if !exists[p] {
			s.metrics.ObserveConsistencyFailure()
			s.log.Errorf("store: consistency check: parent id %d does not exist", p)
			return newError(AbandonedEntry, "parent id %d referenced but does not exist", p)
		}
	}
	return nil
}

// RepairDataConsistency is a stub: it opens and commits an untouched writer
// transaction (so its error behavior for a broken or unopenable store
// matches every other writer) and reports that it moved zero entries. A
// richer repair that relinks abandoned subtrees under a recovery node is
// future work.
//
// TODO: relink AbandonedEntry subtrees under a synthetic recovery node
// instead of reporting zero moved entries, once a recovery-node naming
// scheme is decided.
func (s *Store) RepairDataConsistency(ctx context.Context) (int, error) {
	txn, err := s.Writer(ctx)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback(ctx)

	if err := txn.Commit(ctx); err != nil {
		return 0, err
	}
	return 0, nil
}
