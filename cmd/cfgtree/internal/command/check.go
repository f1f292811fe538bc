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

func initCheck(rootCommand *cobra.Command) {
	params := &commonParams{}
	var repair bool

	checkCommand := &cobra.Command{
		Use:   "check",
		Short: "Verify the tree's internal consistency",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s, err := params.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.CheckDataConsistency(ctx); err != nil {
				if !repair {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "inconsistent: %v\n", err)
				moved, repairErr := s.RepairDataConsistency(ctx)
				if repairErr != nil {
					return repairErr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "repaired, %d entries moved\n", moved)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "consistent")
			return nil
		},
	}
	addCommonFlags(checkCommand.Flags(), params)
	checkCommand.Flags().BoolVar(&repair, "repair", false, "attempt a repair if the tree is inconsistent")
	rootCommand.AddCommand(checkCommand)
}
