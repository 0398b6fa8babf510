package main

import (
	"context"

	"github.com/trezcool/classroom/storage/docstore/pgdb"
)

var gooseRunFunc = pgdb.Migrate // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(ctx, cli.db, args[0], args[1:]...)
}
