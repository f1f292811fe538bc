// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/env"
)

func initDelete(rootCommand *cobra.Command) {
	params := &commonParams{}
	var recursive bool

	deleteCommand := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete the entry at name",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()
			s, err := params.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Delete(ctx, args[0], recursive)
		},
	}
	addCommonFlags(deleteCommand.Flags(), params)
	deleteCommand.Flags().BoolVarP(&recursive, "recursive", "r", true, "delete the entire subtree rooted at name")
	rootCommand.AddCommand(deleteCommand)
}
