// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package pathcache

import "testing"

func TestGetAddRemove(t *testing.T) {
	c := New(8)
	key := Key{Parent: 1, Name: "a"}

	if _, ok := c.Get(key); ok {
		t.Fatalf("Get on an empty cache should miss")
	}

	c.Add(key, 42)
	id, ok := c.Get(key)
	if !ok || id != 42 {
		t.Fatalf("Get after Add = (%d, %v), want (42, true)", id, ok)
	}

	c.Remove(key)
	if _, ok := c.Get(key); ok {
		t.Fatalf("Get after Remove should miss")
	}
}

func TestPurge(t *testing.T) {
	c := New(8)
	c.Add(Key{Parent: 1, Name: "a"}, 1)
	c.Add(Key{Parent: 1, Name: "b"}, 2)
	c.Purge()

	if _, ok := c.Get(Key{Parent: 1, Name: "a"}); ok {
		t.Fatalf("Get after Purge should miss")
	}
}

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New(0)
	key := Key{Parent: 1, Name: "a"}
	c.Add(key, 42)
	if _, ok := c.Get(key); ok {
		t.Fatalf("a disabled cache (size 0) should never hit")
	}
}
