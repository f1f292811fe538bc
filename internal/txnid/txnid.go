// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package txnid generates savepoint names that are unique within the
// lifetime of the owning process, as required by the transaction manager:
// a nested writer's savepoint name only needs to be stable and collision-free
// for the duration of its scope, never across restarts.
package txnid

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// New returns a savepoint name of the form "sp_<uuid>". The leading letter
// keeps the name a valid SQLite identifier even though UUIDs themselves may
// start with a digit.
func New() string {
	id, err := uuid.NewRandomFromReader(rand.Reader)
	if err != nil {
		// crypto/rand.Reader does not fail in practice; fall back to the
		// package-level generator rather than propagate an error through
		// every savepoint-opening call site.
		id = uuid.New()
	}
	return fmt.Sprintf("sp_%s", hex(id))
}

func hex(id uuid.UUID) string {
	return fmt.Sprintf("%x", id[:])
}
