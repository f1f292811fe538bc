// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/env"
	"github.com/bmildner/configstore/store"
)

func initGet(rootCommand *cobra.Command) {
	params := &commonParams{}

	getCommand := &cobra.Command{
		Use:   "get <name>",
		Short: "Print the value stored at name",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, params, args[0])
		},
	}
	addCommonFlags(getCommand.Flags(), params)
	rootCommand.AddCommand(getCommand)
}

func runGet(cmd *cobra.Command, params *commonParams, name string) error {
	ctx := context.Background()
	s, err := params.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	typ, err := s.GetType(ctx, name)
	if err != nil {
		return err
	}

	switch typ {
	case store.Integer:
		v, err := s.GetInteger(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case store.Text:
		v, err := s.GetString(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case store.Blob:
		v, err := s.GetBinary(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%x\n", v)
	}
	return nil
}
