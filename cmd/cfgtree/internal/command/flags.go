// Copyright 2024 The ConfigStore Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package command

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/bmildner/configstore/log"
	"github.com/bmildner/configstore/store"
)

// commonParams holds the flags shared by every subcommand that opens a store.
type commonParams struct {
	dbPath    string
	create    bool
	delimiter string
}

func addCommonFlags(flags *pflag.FlagSet, p *commonParams) {
	flags.StringVar(&p.dbPath, "db", "", "path to the configuration database file")
	flags.BoolVar(&p.create, "create", false, "create the database file if it does not exist")
	flags.StringVar(&p.delimiter, "delimiter", ".", "name delimiter to use for a brand-new database")
}

func (p *commonParams) open(ctx context.Context) (*store.Store, error) {
	delim := byte('.')
	if len(p.delimiter) > 0 {
		delim = p.delimiter[0]
	}
	return store.Open(ctx, store.Config{
		Path:      p.dbPath,
		Create:    p.create,
		Delimiter: delim,
		Logger:    log.Discard(),
	})
}
