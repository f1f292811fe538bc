// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/store"
)

func initVersion(rootCommand *cobra.Command) {
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print the schema version this build reads and writes",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d.%d\n", store.CurrentMajorVersion, store.CurrentMinorVersion)
		},
	}
	rootCommand.AddCommand(versionCommand)
}
