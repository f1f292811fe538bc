// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// stmtCache is the process-wide (really: per-DB-handle) statement cache
// keyed by the SQL text, as required by the backing-store adapter contract.
// The key is hashed with xxhash rather than used as a raw string map key so
// that repeatedly preparing the same long SELECT doesn't rehash the whole
// string on every lookup.
//
// database/sql's *sql.Stmt is already safe to Exec/Query repeatedly without
// an explicit "reset" step (the driver does that internally per call), so
// unlike a raw sqlite3_stmt cache the "reset before reuse" requirement is
// satisfied implicitly by never holding a statement mid-iteration across
// cache hits.
type stmtCache struct {
	mu    sync.Mutex
	stmts map[uint64]*sql.Stmt
}

func newStmtCache() *stmtCache {
	return &stmtCache{stmts: make(map[uint64]*sql.Stmt)}
}

func (c *stmtCache) get(ctx context.Context, conn *sql.Conn, query string) (*sql.Stmt, error) {
	key := xxhash.Sum64String(query)

	c.mu.Lock()
	if stmt, ok := c.stmts[key]; ok {
		c.mu.Unlock()
		return stmt, nil
	}
	c.mu.Unlock()

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.stmts[key]; ok {
		// Lost a race with another caller preparing the same text; keep the
		// statement already in the cache and discard ours.
		stmt.Close()
		return existing, nil
	}
	c.stmts[key] = stmt
	return stmt, nil
}

func (c *stmtCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, stmt := range c.stmts {
		stmt.Close()
		delete(c.stmts, key)
	}
}
