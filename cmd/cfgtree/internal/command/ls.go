// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/env"
)

func initLs(rootCommand *cobra.Command) {
	params := &commonParams{}
	var filter string

	lsCommand := &cobra.Command{
		Use:   "ls [name]",
		Short: "List the children of name (or the root, if omitted)",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runLs(cmd, params, name, filter)
		},
	}
	addCommonFlags(lsCommand.Flags(), params)
	lsCommand.Flags().StringVar(&filter, "filter", "", "glob pattern child names must match")
	rootCommand.AddCommand(lsCommand)
}

func runLs(cmd *cobra.Command, params *commonParams, name, filterPattern string) error {
	ctx := context.Background()
	s, err := params.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var g glob.Glob
	if filterPattern != "" {
		g, err = glob.Compile(filterPattern)
		if err != nil {
			return fmt.Errorf("cfgtree: invalid --filter pattern %q: %w", filterPattern, err)
		}
	}

	children, err := s.GetChildren(ctx, name)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"name", "type", "revision"})

	for _, child := range children {
		if g != nil && !g.Match(child) {
			continue
		}
		fullName := child
		if name != "" {
			fullName = name + string(s.Delimiter()) + child
		}
		typ, err := s.GetType(ctx, fullName)
		if err != nil {
			return err
		}
		rev, err := s.GetRevision(ctx, fullName)
		if err != nil {
			return err
		}
		table.Append([]string{child, typ.String(), strconv.FormatInt(rev.Revision, 10)})
	}

	table.Render()
	return nil
}
