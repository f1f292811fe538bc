// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package txnid

import (
	"strings"
	"testing"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New()
	b := New()

	if !strings.HasPrefix(a, "sp_") {
		t.Fatalf("New() = %q, want sp_ prefix", a)
	}
	if a == b {
		t.Fatalf("two calls to New() produced the same name: %q", a)
	}
}
