// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"github.com/spf13/cobra"
)

// Command registers every cfgtree subcommand onto rootCommand, creating one
// if rootCommand is nil.
func Command(rootCommand *cobra.Command) *cobra.Command {
	if rootCommand == nil {
		rootCommand = &cobra.Command{
			Use:   "cfgtree",
			Short: "Inspect and edit a hierarchical configuration store",
			Long:  "cfgtree reads and writes entries in a configstore-backed configuration tree.",
		}
	}

	initGet(rootCommand)
	initSet(rootCommand)
	initDelete(rootCommand)
	initLs(rootCommand)
	initRev(rootCommand)
	initCheck(rootCommand)
	initVersion(rootCommand)
	return rootCommand
}
