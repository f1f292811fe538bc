// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package store implements a persistent, hierarchical configuration store:
// a tree of named entries, each carrying one typed value and a monotonic
// revision, addressed by dotted paths with a configurable delimiter.
//
// A *Store is single-threaded per instance, the same way a *sql.Tx is
// scoped to one goroutine at a time in idiomatic Go: callers needing
// concurrent access construct one Store per goroutine rather than sharing
// one across goroutines. The package does not add an internal mutex around
// Store methods, since that would silently turn the one-active-transaction
// contract into a queueing one.
package store

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bmildner/configstore/internal/entrytable"
	"github.com/bmildner/configstore/internal/metrics"
	"github.com/bmildner/configstore/internal/pathcache"
	"github.com/bmildner/configstore/internal/settingstable"
	"github.com/bmildner/configstore/internal/sqlstore"
	"github.com/bmildner/configstore/log"
)

// CurrentMajorVersion and CurrentMinorVersion are the schema version this
// build writes to a brand-new store and accepts on open.
const (
	CurrentMajorVersion int64 = 1
	CurrentMinorVersion int64 = 0
)

// Config configures Store.Open. There are no environment variables in the
// core; the CLI driver layers its own flag/env binding on top of this.
type Config struct {
	// Path is the database file path.
	Path string
	// Create permits creating a new database file if Path does not exist.
	Create bool
	// Delimiter is the name delimiter written to a brand-new store. An
	// existing store keeps its persisted delimiter and this value is not
	// compared against it. Zero means DefaultDelimiter.
	Delimiter byte
	// Logger receives the store's log output. Nil discards it.
	Logger log.Logger
	// Registerer receives Prometheus collectors. Nil skips registration.
	Registerer prometheus.Registerer
	// PathCacheSize bounds internal/pathcache; 0 disables the cache.
	PathCacheSize int
}

// Store owns one open database handle, one prepared-statement cache (both
// via internal/sqlstore), and a pointer to the currently-active shared
// transaction, if any.
type Store struct {
	db        *sqlstore.DB
	log       log.Logger
	metrics   *metrics.Collector
	cache     *pathcache.Cache
	delimiter byte
	active    *txnState
}

// Open opens or creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	delim := cfg.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}

	db, err := sqlstore.Open(ctx, cfg.Path, cfg.Create, logger)
	if err != nil {
		return nil, wrapError(DatabaseError, err, "open %q", cfg.Path)
	}

	s := &Store{
		db:      db,
		log:     logger,
		metrics: metrics.New(cfg.Registerer),
		cache:   pathcache.New(cfg.PathCacheSize),
	}

	if err := s.bootstrap(ctx, delim); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database handle. It does not roll back or
// commit any open transaction; callers are responsible for closing their
// own Txn scopes first.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return wrapError(DatabaseError, err, "close")
	}
	return nil
}

// bootstrap ensures the root entry and version/delimiter settings exist (for
// a new store) or checks the version and adopts the persisted delimiter (for
// an existing one, whatever wantDelim is). It runs inside its own writer
// scope, committed before returning.
func (s *Store) bootstrap(ctx context.Context, wantDelim byte) error {
	txn, err := s.Writer(ctx)
	if err != nil {
		return err
	}
	defer txn.Rollback(ctx)

	if _, found, err := entrytable.GetByID(ctx, txn.conn(), entrytable.RootID); err != nil {
		return wrapError(InvalidQuery, err, "check for root entry")
	} else if !found {
		if err := entrytable.InsertRoot(ctx, txn.conn()); err != nil {
			return wrapError(InvalidInsert, err, "insert root entry")
		}
	}

	delim, err := s.checkVersionAndDelimiter(ctx, txn, wantDelim)
	if err != nil {
		return err
	}
	s.delimiter = delim

	return txn.Commit(ctx)
}

// checkVersionAndDelimiter performs the single version comparison and
// delimiter reconciliation run at open time. Partial version metadata
// (one of major/minor present, the other absent) fails with
// InvalidConfiguration; a major version greater than CurrentMajorVersion
// fails with VersionNotSupported.
func (s *Store) checkVersionAndDelimiter(ctx context.Context, txn *Txn, wantDelim byte) (byte, error) {
	conn := txn.conn()

	major, majorFound, err := settingstable.GetInteger(ctx, conn, settingstable.MajorVersionKey)
	if err != nil {
		return 0, wrapError(InvalidQuery, err, "read major version setting")
	}
	minor, minorFound, err := settingstable.GetInteger(ctx, conn, settingstable.MinorVersionKey)
	if err != nil {
		return 0, wrapError(InvalidQuery, err, "read minor version setting")
	}

	switch {
	case !majorFound && !minorFound:
		if err := settingstable.SetInteger(ctx, conn, settingstable.MajorVersionKey, CurrentMajorVersion); err != nil {
			return 0, wrapError(InvalidInsert, err, "write major version setting")
		}
		if err := settingstable.SetInteger(ctx, conn, settingstable.MinorVersionKey, CurrentMinorVersion); err != nil {
			return 0, wrapError(InvalidInsert, err, "write minor version setting")
		}
	case majorFound != minorFound:
		return 0, newError(InvalidConfiguration, "store has partial version metadata (major present=%v, minor present=%v)", majorFound, minorFound)
	default:
		if major > CurrentMajorVersion {
			return 0, newError(VersionNotSupported, "store major version %d exceeds supported version %d", major, CurrentMajorVersion)
		}
	}

	delimStr, found, err := settingstable.GetText(ctx, conn, settingstable.NameDelimiterKey)
	if err != nil {
		return 0, wrapError(InvalidQuery, err, "read name delimiter setting")
	}
	if !found {
		if err := settingstable.SetText(ctx, conn, settingstable.NameDelimiterKey, string(wantDelim)); err != nil {
			return 0, wrapError(InvalidInsert, err, "write name delimiter setting")
		}
		return wantDelim, nil
	}
	if len(delimStr) != 1 {
		return 0, newError(InvalidDelimiterSetting, "persisted name delimiter %q is not a single character", delimStr)
	}
	return delimStr[0], nil
}

// Delimiter returns the store's current name delimiter.
func (s *Store) Delimiter() byte { return s.delimiter }

func (s *Store) validName(name string) error {
	if !IsValidName(name, s.delimiter) {
		return newError(InvalidName, "%q is not a valid name", name)
	}
	return nil
}
