// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package store implements a persistent, hierarchical configuration tree
// backed by a single SQLite file.
//
// Entries form a tree addressed by delimiter-joined path names (e.g.
// "a.b.c"), rooted at a fixed id-0 entry. Each entry carries a typed value
// (integer, text, or blob) and a revision that increases on every write to
// the entry itself or to any of its descendants, so a caller can detect
// that something changed under a prefix without re-reading the whole
// subtree. Writing a deep path auto-vivifies the missing intermediate
// entries along the way.
//
// All access goes through a Store, which serializes reads and writes onto
// a single underlying SQLite connection: Reader and Writer open (or join,
// or nest into) that connection's current transaction, and callers defer
// Txn.Rollback immediately after a successful call, committing explicitly
// only on the success path.
package store
