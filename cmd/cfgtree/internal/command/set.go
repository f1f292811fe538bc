// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bmildner/configstore/cmd/cfgtree/internal/env"
	"github.com/bmildner/configstore/store"
)

func initSet(rootCommand *cobra.Command) {
	params := &commonParams{}
	var (
		asInteger bool
		asBlob    bool
		create    bool
	)

	setCommand := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set (or create) the value stored at name",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return env.CmdFlags.CheckEnvironmentVariables(cmd)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runSet(params, args[0], args[1], asInteger, asBlob, create)
		},
	}
	addCommonFlags(setCommand.Flags(), params)
	setCommand.Flags().BoolVar(&asInteger, "integer", false, "interpret the value as a signed 64-bit integer")
	setCommand.Flags().BoolVar(&asBlob, "blob", false, "interpret the value as hex-encoded bytes")
	setCommand.Flags().BoolVar(&create, "only-create", false, "fail instead of overwriting an existing entry")
	rootCommand.AddCommand(setCommand)
}

func runSet(params *commonParams, name, raw string, asInteger, asBlob, onlyCreate bool) error {
	ctx := context.Background()
	s, err := params.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var value store.Value
	switch {
	case asInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("cfgtree: %q is not a valid integer: %w", raw, err)
		}
		value = store.NewInteger(n)
	case asBlob:
		b, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("cfgtree: %q is not valid hex: %w", raw, err)
		}
		value = store.NewBlob(b)
	default:
		value = store.NewText(raw)
	}

	if onlyCreate {
		return s.Create(ctx, name, value)
	}
	return s.SetOrCreate(ctx, name, value)
}
