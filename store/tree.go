// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/bmildner/configstore/internal/entrytable"
	"github.com/bmildner/configstore/internal/pathcache"
	"github.com/bmildner/configstore/internal/settingstable"
)

// Exists reports whether name resolves to an entry. name == "" denotes the
// root, which always exists.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	txn, err := s.Reader(ctx)
	if err != nil {
		return false, err
	}
	defer txn.Rollback(ctx)

	if name == "" {
		return true, nil
	}
	if err := s.validName(name); err != nil {
		return false, err
	}
	res, err := s.resolvePath(ctx, txn, ParseName(name, s.delimiter), entrytable.RootID)
	if err != nil {
		return false, err
	}
	s.metrics.ObserveRead()
	return res.complete(), nil
}

// lookup resolves name (which must be non-empty and valid) to its row,
// failing with EntryNotFound (with a levenshtein-nearest-sibling suggestion
// when one exists) if it does not exist.
func (s *Store) lookup(ctx context.Context, txn *Txn, name string) (entrytable.Row, error) {
	segments := ParseName(name, s.delimiter)
	res, err := s.resolvePath(ctx, txn, segments, entrytable.RootID)
	if err != nil {
		return entrytable.Row{}, err
	}
	if !res.complete() {
		return entrytable.Row{}, s.notFoundWithSuggestion(ctx, txn, res.terminalID(), segments[len(res.ids)])
	}
	row, found, err := entrytable.GetByID(ctx, txn.conn(), res.terminalID())
	if err != nil {
		return entrytable.Row{}, wrapError(InvalidQuery, err, "load entry %d", res.terminalID())
	}
	if !found {
		return entrytable.Row{}, newError(EntryNotFound, "entry %q disappeared mid-transaction", name)
	}
	return row, nil
}

// notFoundWithSuggestion builds an EntryNotFound error, including the
// nearest sibling name under parent by edit distance when one is close
// enough to plausibly be a typo.
func (s *Store) notFoundWithSuggestion(ctx context.Context, txn *Txn, parent int64, missing string) *Error {
	children, err := entrytable.ChildrenOf(ctx, txn.conn(), parent)
	if err != nil || len(children) == 0 {
		return newError(EntryNotFound, "%q does not exist", missing)
	}

	best := ""
	bestDist := -1
	for _, c := range children {
		d := levenshtein.ComputeDistance(missing, c.Name)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c.Name
		}
	}
	// Only suggest when the edit distance is small relative to the name's
	// length; otherwise "did you mean" is noise rather than help.
	if best != "" && bestDist > 0 && bestDist <= (len(missing)+1)/2 {
		return newError(EntryNotFound, "%q does not exist (did you mean %q?)", missing, best)
	}
	return newError(EntryNotFound, "%q does not exist", missing)
}

// GetType returns the type tag of the entry addressed by name.
func (s *Store) GetType(ctx context.Context, name string) (Type, error) {
	if err := s.validName(name); err != nil {
		return 0, err
	}
	txn, err := s.Reader(ctx)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback(ctx)

	row, err := s.lookup(ctx, txn, name)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveRead()
	return rowType(row.Type)
}

func rowType(t entrytable.Type) (Type, error) {
	switch t {
	case entrytable.Integer:
		return Integer, nil
	case entrytable.Text:
		return Text, nil
	case entrytable.Blob:
		return Blob, nil
	default:
		return 0, newError(UnknownEntryType, "entry has unrecognized type tag %d", int(t))
	}
}

// IsInteger reports whether name exists and holds an Integer value.
func (s *Store) IsInteger(ctx context.Context, name string) (bool, error) { return s.isType(ctx, name, Integer) }

// IsString reports whether name exists and holds a Text value.
func (s *Store) IsString(ctx context.Context, name string) (bool, error) { return s.isType(ctx, name, Text) }

// IsBinary reports whether name exists and holds a Blob value.
func (s *Store) IsBinary(ctx context.Context, name string) (bool, error) { return s.isType(ctx, name, Blob) }

func (s *Store) isType(ctx context.Context, name string, want Type) (bool, error) {
	typ, err := s.GetType(ctx, name)
	if err != nil {
		return false, err
	}
	return typ == want, nil
}

// Revision pairs an entry's id with its current revision counter.
type Revision struct {
	ID       int64
	Revision int64
}

// GetRevision returns the {id, revision} pair of name, or the root's if
// name == "".
func (s *Store) GetRevision(ctx context.Context, name string) (Revision, error) {
	txn, err := s.Reader(ctx)
	if err != nil {
		return Revision{}, err
	}
	defer txn.Rollback(ctx)

	var row entrytable.Row
	if name == "" {
		var found bool
		row, found, err = entrytable.GetByID(ctx, txn.conn(), entrytable.RootID)
		if err != nil {
			return Revision{}, wrapError(InvalidQuery, err, "load root entry")
		}
		if !found {
			return Revision{}, newError(RootEntryMissing, "root entry (id=0) not found")
		}
	} else {
		if err := s.validName(name); err != nil {
			return Revision{}, err
		}
		row, err = s.lookup(ctx, txn, name)
		if err != nil {
			return Revision{}, err
		}
	}
	s.metrics.ObserveRead()
	return Revision{ID: row.ID, Revision: row.Revision}, nil
}

// HasChild reports whether name (or the root, if name == "") has at least
// one child.
func (s *Store) HasChild(ctx context.Context, name string) (bool, error) {
	txn, err := s.Reader(ctx)
	if err != nil {
		return false, err
	}
	defer txn.Rollback(ctx)

	parent, err := s.resolveExistingForRead(ctx, txn, name)
	if err != nil {
		return false, err
	}
	has, err := entrytable.HasChild(ctx, txn.conn(), parent)
	if err != nil {
		return false, wrapError(InvalidQuery, err, "check children of entry %d", parent)
	}
	s.metrics.ObserveRead()
	return has, nil
}

// GetChildren returns the immediate child local names of name (or the root,
// if name == ""), in the backing store's natural row order.
func (s *Store) GetChildren(ctx context.Context, name string) ([]string, error) {
	txn, err := s.Reader(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback(ctx)

	parent, err := s.resolveExistingForRead(ctx, txn, name)
	if err != nil {
		return nil, err
	}
	rows, err := entrytable.ChildrenOf(ctx, txn.conn(), parent)
	if err != nil {
		return nil, wrapError(InvalidQuery, err, "list children of entry %d", parent)
	}
	s.metrics.ObserveRead()

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}

// resolveExistingForRead resolves name (root if empty) to an id, failing
// with EntryNotFound if it does not exist.
func (s *Store) resolveExistingForRead(ctx context.Context, txn *Txn, name string) (int64, error) {
	if name == "" {
		return entrytable.RootID, nil
	}
	if err := s.validName(name); err != nil {
		return 0, err
	}
	row, err := s.lookup(ctx, txn, name)
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// Create creates a new entry at name with value, auto-vivifying any missing
// ancestors with the default (Integer, 0) payload. It fails with
// NameAlreadyExists if the full path already exists.
func (s *Store) Create(ctx context.Context, name string, value Value) error {
	if err := s.validName(name); err != nil {
		return err
	}
	txn, err := s.Writer(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	segments := ParseName(name, s.delimiter)
	res, err := s.resolvePath(ctx, txn, segments, entrytable.RootID)
	if err != nil {
		return err
	}
	if res.complete() {
		return newError(NameAlreadyExists, "%q already exists", name)
	}

	chain, created, err := s.autoVivify(ctx, txn, res, value)
	if err != nil {
		return err
	}
	if created > 1 {
		s.metrics.ObserveAutoVivification(created - 1)
	}
	if err := s.bumpRevisions(ctx, txn, chain[:len(chain)-1]); err != nil {
		return err
	}
	s.metrics.ObserveWrite()
	s.log.Debugf("store: created %q (%d intermediate entries auto-vivified)", name, created-1)
	return txn.Commit(ctx)
}

// Set replaces the type and value of the existing entry at name. It fails
// with EntryNotFound if name does not exist.
func (s *Store) Set(ctx context.Context, name string, value Value) error {
	if err := s.validName(name); err != nil {
		return err
	}
	txn, err := s.Writer(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	row, err := s.lookup(ctx, txn, name)
	if err != nil {
		return err
	}

	typ, integer, text, blob := toRow(value)
	if err := entrytable.UpdateValue(ctx, txn.conn(), row.ID, typ, row.Revision+1, integer, text, blob); err != nil {
		return wrapError(InvalidInsert, err, "update entry %q", name)
	}

	segments := ParseName(name, s.delimiter)
	res, err := s.resolvePath(ctx, txn, segments[:len(segments)-1], entrytable.RootID)
	if err != nil {
		return err
	}
	if err := s.bumpRevisions(ctx, txn, res.ids); err != nil {
		return err
	}
	s.metrics.ObserveWrite()
	return txn.Commit(ctx)
}

// SetOrCreate behaves as Set if name exists, or as Create otherwise.
func (s *Store) SetOrCreate(ctx context.Context, name string, value Value) error {
	if err := s.validName(name); err != nil {
		return err
	}
	txn, err := s.Writer(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	segments := ParseName(name, s.delimiter)
	res, err := s.resolvePath(ctx, txn, segments, entrytable.RootID)
	if err != nil {
		return err
	}

	if res.complete() {
		row, found, err := entrytable.GetByID(ctx, txn.conn(), res.terminalID())
		if err != nil {
			return wrapError(InvalidQuery, err, "load entry %q", name)
		}
		if !found {
			return newError(EntryNotFound, "entry %q disappeared mid-transaction", name)
		}
		typ, integer, text, blob := toRow(value)
		if err := entrytable.UpdateValue(ctx, txn.conn(), row.ID, typ, row.Revision+1, integer, text, blob); err != nil {
			return wrapError(InvalidInsert, err, "update entry %q", name)
		}
		if err := s.bumpRevisions(ctx, txn, res.ids[:len(res.ids)-1]); err != nil {
			return err
		}
	} else {
		chain, created, err := s.autoVivify(ctx, txn, res, value)
		if err != nil {
			return err
		}
		if created > 1 {
			s.metrics.ObserveAutoVivification(created - 1)
		}
		if err := s.bumpRevisions(ctx, txn, chain[:len(chain)-1]); err != nil {
			return err
		}
	}

	s.metrics.ObserveWrite()
	return txn.Commit(ctx)
}

// GetInteger returns the Integer value at name, failing WrongValueType if
// name holds a different type.
func (s *Store) GetInteger(ctx context.Context, name string) (int64, error) {
	v, err := s.get(ctx, name, Integer)
	if err != nil {
		return 0, err
	}
	return v.Integer(), nil
}

// GetString returns the Text value at name, failing WrongValueType if name
// holds a different type.
func (s *Store) GetString(ctx context.Context, name string) (string, error) {
	v, err := s.get(ctx, name, Text)
	if err != nil {
		return "", err
	}
	return v.Text(), nil
}

// GetBinary returns the Blob value at name, failing WrongValueType if name
// holds a different type.
func (s *Store) GetBinary(ctx context.Context, name string) ([]byte, error) {
	v, err := s.get(ctx, name, Blob)
	if err != nil {
		return nil, err
	}
	return v.Blob(), nil
}

// GetIntegerOr returns the Integer value at name, or fallback if name does
// not exist. Any other error (including WrongValueType) still propagates.
func (s *Store) GetIntegerOr(ctx context.Context, name string, fallback int64) (int64, error) {
	v, err := s.GetInteger(ctx, name)
	if IsEntryNotFound(err) {
		return fallback, nil
	}
	return v, err
}

// GetStringOr returns the Text value at name, or fallback if name does not
// exist.
func (s *Store) GetStringOr(ctx context.Context, name string, fallback string) (string, error) {
	v, err := s.GetString(ctx, name)
	if IsEntryNotFound(err) {
		return fallback, nil
	}
	return v, err
}

// GetBinaryOr returns the Blob value at name, or fallback if name does not
// exist.
func (s *Store) GetBinaryOr(ctx context.Context, name string, fallback []byte) ([]byte, error) {
	v, err := s.GetBinary(ctx, name)
	if IsEntryNotFound(err) {
		return fallback, nil
	}
	return v, err
}

func (s *Store) get(ctx context.Context, name string, want Type) (Value, error) {
	if err := s.validName(name); err != nil {
		return Value{}, err
	}
	txn, err := s.Reader(ctx)
	if err != nil {
		return Value{}, err
	}
	defer txn.Rollback(ctx)

	row, err := s.lookup(ctx, txn, name)
	if err != nil {
		return Value{}, err
	}
	v, err := fromRow(row.Type, row.Integer, row.Text, row.Blob)
	if err != nil {
		return Value{}, err
	}
	if v.Type() != want {
		return Value{}, newError(WrongValueType, "%q holds %s, not %s", name, v.Type(), want)
	}
	s.metrics.ObserveRead()
	return v, nil
}

// TryDelete removes the entry at name (and, if recursive, its whole
// subtree). It returns false instead of an error when name does not exist,
// or when recursive is false and the entry has children.
func (s *Store) TryDelete(ctx context.Context, name string, recursive bool) (bool, error) {
	if err := s.validName(name); err != nil {
		return false, err
	}
	txn, err := s.Writer(ctx)
	if err != nil {
		return false, err
	}
	defer txn.Rollback(ctx)

	segments := ParseName(name, s.delimiter)
	res, err := s.resolvePath(ctx, txn, segments, entrytable.RootID)
	if err != nil {
		return false, err
	}
	if !res.complete() {
		return false, nil
	}

	id := res.terminalID()
	if !recursive {
		has, err := entrytable.HasChild(ctx, txn.conn(), id)
		if err != nil {
			return false, wrapError(InvalidQuery, err, "check children of entry %d", id)
		}
		if has {
			return false, nil
		}
	}

	count, err := s.deleteSubtree(ctx, txn, id)
	if err != nil {
		return false, err
	}

	parent := entrytable.RootID
	if len(res.ids) > 1 {
		parent = res.ids[len(res.ids)-2]
	}
	if count > 1 {
		s.cache.Purge()
	} else {
		s.cache.Remove(pathcache.Key{Parent: parent, Name: segments[len(segments)-1]})
	}
	if err := s.bumpRevisions(ctx, txn, res.ids[:len(res.ids)-1]); err != nil {
		return false, err
	}
	s.metrics.ObserveDeletes(count)
	s.log.Debugf("store: deleted %q (%d entries removed)", name, count)

	if err := txn.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Delete behaves like TryDelete but raises EntryNotFound or HasChildEntry
// instead of returning false.
func (s *Store) Delete(ctx context.Context, name string, recursive bool) error {
	if err := s.validName(name); err != nil {
		return err
	}
	txn, err := s.Reader(ctx)
	if err != nil {
		return err
	}
	exists, existsErr := func() (bool, error) {
		defer txn.Rollback(ctx)
		segments := ParseName(name, s.delimiter)
		res, err := s.resolvePath(ctx, txn, segments, entrytable.RootID)
		if err != nil {
			return false, err
		}
		if !res.complete() {
			return false, nil
		}
		if !recursive {
			has, err := entrytable.HasChild(ctx, txn.conn(), res.terminalID())
			if err != nil {
				return false, wrapError(InvalidQuery, err, "check children of entry %d", res.terminalID())
			}
			if has {
				return false, newError(HasChildEntry, "%q has children and recursive delete was not requested", name)
			}
		}
		return true, nil
	}()
	if existsErr != nil {
		return existsErr
	}
	if !exists {
		return newError(EntryNotFound, "%q does not exist", name)
	}

	deleted, err := s.TryDelete(ctx, name, recursive)
	if err != nil {
		return err
	}
	if !deleted {
		// Lost a race between the check above and the delete itself (e.g. a
		// concurrent instance removed it first); report it uniformly.
		return newError(EntryNotFound, "%q does not exist", name)
	}
	return nil
}

// deleteSubtree removes root and everything beneath it, bottom-up, via an
// explicit work stack rather than recursion to avoid unbounded stack growth
// on deep or wide trees. Children are enumerated fresh at each level (no
// cursor is held across the mutations that follow).
func (s *Store) deleteSubtree(ctx context.Context, txn *Txn, root int64) (int, error) {
	var order []int64
	stack := []int64{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, id)

		children, err := entrytable.ChildrenOf(ctx, txn.conn(), id)
		if err != nil {
			return 0, wrapError(InvalidQuery, err, "list children of entry %d", id)
		}
		for _, c := range children {
			stack = append(stack, c.ID)
		}
	}

	// order is pre-order (parents before children); delete in reverse so
	// every child is removed before its parent.
	for i := len(order) - 1; i >= 0; i-- {
		if err := entrytable.DeleteByID(ctx, txn.conn(), order[i]); err != nil {
			return 0, wrapError(InvalidInsert, err, "delete entry %d", order[i])
		}
	}
	return len(order), nil
}

// SetNewDelimiter changes the store's active name delimiter to c, failing
// with InvalidDelimiter if any existing entry name already contains c.
func (s *Store) SetNewDelimiter(ctx context.Context, c byte) error {
	txn, err := s.Writer(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	it, err := entrytable.AllRows(ctx, txn.conn())
	if err != nil {
		return wrapError(InvalidQuery, err, "scan entries")
	}
	defer it.Close()

	for it.Next() {
		row, err := it.Row()
		if err != nil {
			return wrapError(InvalidQuery, err, "scan entries")
		}
		if row.ID == entrytable.RootID {
			continue
		}
		for i := 0; i < len(row.Name); i++ {
			if row.Name[i] == c {
				return newError(InvalidDelimiter, "entry %d name %q already contains delimiter %q", row.ID, row.Name, string(c))
			}
		}
	}
	if err := it.Err(); err != nil {
		return wrapError(InvalidQuery, err, "scan entries")
	}

	if err := settingstable.SetText(ctx, txn.conn(), settingstable.NameDelimiterKey, string(c)); err != nil {
		return wrapError(InvalidInsert, err, "persist new delimiter")
	}
	s.delimiter = c
	s.cache.Purge()
	return txn.Commit(ctx)
}

// Dump writes a JSON snapshot of the whole tree to w, walking it under a
// fresh read transaction. It performs no mutation.
func (s *Store) Dump(ctx context.Context, w io.Writer) error {
	txn, err := s.Reader(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	node, err := s.dumpNode(ctx, txn, entrytable.RootID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(node)
}

// dumpEntry is the JSON shape one tree node is rendered as by Dump.
type dumpEntry struct {
	Name     string                `json:"name"`
	Type     string                `json:"type"`
	Revision int64                 `json:"revision"`
	Integer  int64                 `json:"integer,omitempty"`
	Text     string                `json:"text,omitempty"`
	Blob     []byte                `json:"blob,omitempty"`
	Children map[string]*dumpEntry `json:"children,omitempty"`
}

func (s *Store) dumpNode(ctx context.Context, txn *Txn, id int64) (*dumpEntry, error) {
	row, found, err := entrytable.GetByID(ctx, txn.conn(), id)
	if err != nil {
		return nil, wrapError(InvalidQuery, err, "load entry %d", id)
	}
	if !found {
		return nil, newError(EntryNotFound, "entry %d not found while dumping", id)
	}
	typ, err := rowType(row.Type)
	if err != nil {
		return nil, err
	}

	node := &dumpEntry{Name: row.Name, Type: typ.String(), Revision: row.Revision}
	switch typ {
	case Integer:
		node.Integer = row.Integer
	case Text:
		node.Text = row.Text
	case Blob:
		node.Blob = row.Blob
	}

	children, err := entrytable.ChildrenOf(ctx, txn.conn(), id)
	if err != nil {
		return nil, wrapError(InvalidQuery, err, "list children of entry %d", id)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	if len(children) > 0 {
		node.Children = make(map[string]*dumpEntry, len(children))
		for _, c := range children {
			child, err := s.dumpNode(ctx, txn, c.ID)
			if err != nil {
				return nil, err
			}
			node.Children[c.Name] = child
		}
	}
	return node, nil
}
