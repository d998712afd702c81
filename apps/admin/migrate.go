package main

import (
	"context"

	"github.com/trezcool/escola/storage/database"
)

var migrateFunc = database.MigrateCmd // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return migrateFunc(ctx, cli.db, args[0], args[1:]...)
}
