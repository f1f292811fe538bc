// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/command"
)

func main() {
	// Respect a container's CPU quota instead of the host's full core count;
	// the SQLite-backed store itself never needs more than one goroutine, but
	// database/sql's connection pool and the Go runtime's own GC workers do.
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "cfgtree: maxprocs.Set: %v\n", err)
	}

	if err := command.Command(nil).Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
