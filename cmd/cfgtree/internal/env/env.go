// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package env maps CFGTREE_<CMD>_<FLAG> environment variables onto unset
// cobra flags.
package env

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type cmdFlags interface {
	CheckEnvironmentVariables(command *cobra.Command) error
}

type cmdFlagsImpl struct{}

var (
	CmdFlags           cmdFlags = cmdFlagsImpl{}
	errorMessagePrefix          = "error mapping environment variables to command flags"
)

const globalPrefix = "cfgtree"

// CheckEnvironmentVariables sets every flag on command that the caller did
// not explicitly pass, from the environment variable
// CFGTREE_<COMMAND>_<FLAG> (or CFGTREE_<FLAG> for the root command itself).
// An explicitly-set flag is never overridden.
func (cf cmdFlagsImpl) CheckEnvironmentVariables(command *cobra.Command) error {
	var errs []string
	v := viper.New()
	v.AutomaticEnv()
	if command.Name() == globalPrefix {
		v.SetEnvPrefix(command.Name())
	} else {
		v.SetEnvPrefix(fmt.Sprintf("%s_%s", globalPrefix, command.Name()))
	}
	command.Flags().VisitAll(func(f *pflag.Flag) {
		configName := f.Name
		configName = strings.ReplaceAll(configName, "-", "_")
		if !f.Changed && v.IsSet(configName) {
			val := v.Get(configName)
			if err := command.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", errorMessagePrefix, strings.Join(errs, "; "))
}
