// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/env"
)

func initRev(rootCommand *cobra.Command) {
	params := &commonParams{}

	revCommand := &cobra.Command{
		Use:   "rev [name]",
		Short: "Print the {id, revision} pair of name (or the root, if omitted)",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			ctx := context.Background()
			s, err := params.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			rev, err := s.GetRevision(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id=%d revision=%d\n", rev.ID, rev.Revision)
			return nil
		},
	}
	addCommonFlags(revCommand.Flags(), params)
	rootCommand.AddCommand(revCommand)
}
