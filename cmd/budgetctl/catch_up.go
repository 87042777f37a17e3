package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

type catchUpCmd struct {
	date string
}

func (*catchUpCmd) Name() string { return "catch-up" }
func (*catchUpCmd) Synopsis() string {
	return "generate this month's missed monthly recurring transactions"
}
func (*catchUpCmd) Usage() string {
	return `budgetctl catch-up [-d <date>]

  Generates the current month's transaction for every active monthly template
  whose day already passed without one, e.g. after the scheduler was down.
`
}

func (c *catchUpCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "reference day, YYYY-MM-DD (defaults to today)")
}

func (c *catchUpCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	today := core.DateOf(time.Now())
	if c.date != "" {
		d, err := core.ParseDate(c.date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		today = d
	}

	cfg, logger := setup()
	logger = logger.WithFields(log.NewFields().WithOperation(log.OpCatchUp))
	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	client := connectAMQP(logger, cfg)
	if client != nil {
		defer client.Close()
	}

	recurring := services.NewRecurringService(repo, nil, cli.Publisher(client))
	gens, err := recurring.CatchUpMissed(log.NewContext(ctx, logger), today)
	if err != nil {
		logger.Error("Catch-up failed", log.FieldError, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printHeader(fmt.Sprintf("Catch-up %s", today))
	printGenerations(gens)
	return subcommands.ExitSuccess
}
