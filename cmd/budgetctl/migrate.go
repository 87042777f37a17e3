package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"budget/internal/log"
	"budget/internal/storage"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `budgetctl migrate

  Applies every pending migration to SQLITE_DB_PATH and prints the schema version.
`
}

func (*migrateCmd) SetFlags(f *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, logger := setup()
	logger = logger.WithFields(log.NewFields().WithOperation(log.OpMigrate))

	if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
		logger.Error("Migration failed", log.FieldError, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	logger.Info("Migrations applied", "version", version, "dirty", dirty)
	printSuccess("schema at version %d", version)
	return subcommands.ExitSuccess
}
