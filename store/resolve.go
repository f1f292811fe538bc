// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/bmildner/configstore/internal/entrytable"
	"github.com/bmildner/configstore/internal/pathcache"
)

// resolution is the result of walking a dotted name's segments against the
// (parent, name) unique index.
type resolution struct {
	ids        []int64  // the id chain resolved so far, root-relative
	unresolved []string // remaining segments past the longest matched prefix
}

// complete reports whether every segment resolved.
func (r resolution) complete() bool { return len(r.unresolved) == 0 }

// terminalID is the id of the last resolved segment (or entrytable.RootID if
// nothing resolved).
func (r resolution) terminalID() int64 {
	if len(r.ids) == 0 {
		return entrytable.RootID
	}
	return r.ids[len(r.ids)-1]
}

// resolvePath walks segments left-to-right from parent, consulting the path
// cache before the backing store for each hop, and returns the longest
// matched prefix plus whatever segments remain.
func (s *Store) resolvePath(ctx context.Context, txn *Txn, segments []string, parent int64) (resolution, error) {
	ids := make([]int64, 0, len(segments))
	current := parent

	for i, seg := range segments {
		key := pathcache.Key{Parent: current, Name: seg}
		if id, ok := s.cache.Get(key); ok {
			ids = append(ids, id)
			current = id
			continue
		}

		row, found, err := entrytable.GetByParentName(ctx, txn.conn(), current, seg)
		if err != nil {
			return resolution{}, wrapError(InvalidQuery, err, "resolve segment %q", seg)
		}
		if !found {
			return resolution{ids: ids, unresolved: segments[i:]}, nil
		}

		s.cache.Add(key, row.ID)
		ids = append(ids, row.ID)
		current = row.ID
	}

	return resolution{ids: ids, unresolved: nil}, nil
}

// randomRevision draws a revision uniformly from the full signed 64-bit
// range: a deleted-and-recreated entry almost certainly produces an
// observably different {id, revision} pair.
func randomRevision() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read failing means the platform's CSPRNG is broken;
		// there is no sane fallback that preserves the uniqueness property,
		// so surface a deterministic but still-unlikely-to-collide value
		// rather than panicking the whole store.
		return int64(binary.BigEndian.Uint64(buf[:])) ^ 0x5bd1e995
	}
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// autoVivify inserts every segment in res.unresolved under res.terminalID(),
// using the default (Integer, 0) payload for all but the last segment, and
// the caller-supplied value for the last. It returns the full id chain and
// the number of entries it created.
func (s *Store) autoVivify(ctx context.Context, txn *Txn, res resolution, value Value) ([]int64, int, error) {
	ids := append([]int64(nil), res.ids...)
	parent := res.terminalID()

	for i, seg := range res.unresolved {
		last := i == len(res.unresolved)-1

		var (
			typ     entrytable.Type
			integer int64
			text    string
			blob    []byte
		)
		if last {
			typ, integer, text, blob = toRow(value)
		} else {
			typ, integer = entrytable.Integer, 0
		}

		id, err := entrytable.Insert(ctx, txn.conn(), parent, seg, typ, randomRevision(), integer, text, blob)
		if err != nil {
			return nil, 0, wrapError(InvalidInsert, err, "create entry %q", seg)
		}

		s.cache.Add(pathcache.Key{Parent: parent, Name: seg}, id)
		ids = append(ids, id)
		parent = id
	}

	return ids, len(res.unresolved), nil
}

// toRow decodes a Value into the (type, integer, text, blob) tuple
// entrytable's CRUD functions take, the boundary conversion that keeps
// internal/entrytable free of any dependency on the store package.
func toRow(v Value) (entrytable.Type, int64, string, []byte) {
	switch v.Type() {
	case Integer:
		return entrytable.Integer, v.Integer(), "", nil
	case Text:
		return entrytable.Text, 0, v.Text(), nil
	case Blob:
		return entrytable.Blob, 0, "", v.Blob()
	default:
		return entrytable.Integer, 0, "", nil
	}
}

// fromRow is the inverse of toRow, used when reading an entry back out.
func fromRow(typ entrytable.Type, integer int64, text string, blob []byte) (Value, error) {
	switch typ {
	case entrytable.Integer:
		return NewInteger(integer), nil
	case entrytable.Text:
		return NewText(text), nil
	case entrytable.Blob:
		return NewBlob(blob), nil
	default:
		return Value{}, newError(UnknownEntryType, "entry has unrecognized type tag %d", int(typ))
	}
}

// bumpRevisions increments the revision of every id in chain, in order, plus
// the root's: each ancestor is read then written as read+1, independently
// (not as a single batch statement), so a writer committed mid-chain still
// leaves every already-bumped ancestor observably advanced.
func (s *Store) bumpRevisions(ctx context.Context, txn *Txn, chain []int64) error {
	rootRow, found, err := entrytable.GetByID(ctx, txn.conn(), entrytable.RootID)
	if err != nil {
		return wrapError(InvalidQuery, err, "read root revision")
	}
	if !found {
		return newError(RootEntryMissing, "root entry (id=0) not found")
	}
	if err := entrytable.BumpRevision(ctx, txn.conn(), entrytable.RootID, rootRow.Revision+1); err != nil {
		return wrapError(InvalidInsert, err, "bump root revision")
	}

	bumped := 1
	for _, id := range chain {
		row, found, err := entrytable.GetByID(ctx, txn.conn(), id)
		if err != nil {
			return wrapError(InvalidQuery, err, "read revision for entry %d", id)
		}
		if !found {
			return newError(EntryNotFound, "ancestor entry %d not found while bumping revisions", id)
		}
		if err := entrytable.BumpRevision(ctx, txn.conn(), id, row.Revision+1); err != nil {
			return wrapError(InvalidInsert, err, "bump revision for entry %d", id)
		}
		bumped++
	}

	s.metrics.ObserveRevisionBumps(bumped)
	return nil
}
