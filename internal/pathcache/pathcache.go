// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package pathcache caches the id resolved for a (parent, name) pair so that
// repeated lookups against hot prefixes of the tree don't round-trip through
// the backing store. It never caches negative lookups (misses) because a
// miss is typically followed by an insert for the very same key, which would
// otherwise require an explicit invalidation path for "not found".
package pathcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies an entry by its parent id and local name.
type Key struct {
	Parent int64
	Name   string
}

// Cache is a bounded, thread-unsafe-by-design cache (the store that owns it
// is itself single-threaded per instance; see the package doc of store).
type Cache struct {
	lru *lru.Cache[Key, int64]
}

// New returns a Cache holding at most size resolved ids. A size of 0 or less
// disables caching; Get always misses and Add is a no-op.
func New(size int) *Cache {
	if size <= 0 {
		return &Cache{}
	}
	c, err := lru.New[Key, int64](size)
	if err != nil {
		// Only returns an error for a non-positive size, already excluded above.
		return &Cache{}
	}
	return &Cache{lru: c}
}

// Get returns the cached id for key, if present.
func (c *Cache) Get(key Key) (int64, bool) {
	if c.lru == nil {
		return 0, false
	}
	return c.lru.Get(key)
}

// Add records the id resolved for key.
func (c *Cache) Add(key Key, id int64) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key, id)
}

// Remove drops key from the cache, used whenever the entry it names is
// deleted or re-created (its id would otherwise go stale).
func (c *Cache) Remove(key Key) {
	if c.lru == nil {
		return
	}
	c.lru.Remove(key)
}

// Purge drops every cached entry, used after a bulk/recursive delete where
// invalidating individual keys is not worth tracking.
func (c *Cache) Purge() {
	if c.lru == nil {
		return
	}
	c.lru.Purge()
}
