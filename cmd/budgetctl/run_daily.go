package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

type runDailyCmd struct {
	dryRun  bool
	txType  string
	date    string
	verbose bool
	json    bool
}

func (*runDailyCmd) Name() string { return "run-daily" }
func (*runDailyCmd) Synopsis() string {
	return "generate due recurring transactions and insurance returns"
}
func (*runDailyCmd) Usage() string {
	return `budgetctl run-daily [-dry-run] [-type income|expense] [-d <date>] [-v] [-json]

  Evaluates every active recurring template and insurance policy for the day
  and creates the transactions that are due. Safe to run more than once a day.
`
}

func (c *runDailyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "report what would be generated without writing")
	f.StringVar(&c.txType, "type", "", "only process templates of this type (income, expense)")
	f.StringVar(&c.date, "d", "", "day to process, YYYY-MM-DD (defaults to today)")
	f.BoolVar(&c.verbose, "v", false, "also list skipped entities")
	f.BoolVar(&c.json, "json", false, "print the report as JSON")
}

func (c *runDailyCmd) options() (services.DailyOptions, error) {
	opts := services.DailyOptions{DryRun: c.dryRun}
	if c.date != "" {
		d, err := core.ParseDate(c.date)
		if err != nil {
			return opts, err
		}
		opts.Today = d
	}
	if c.txType != "" {
		t, err := core.ParseTxType(c.txType)
		if err != nil {
			return opts, err
		}
		opts.Type = t
	}
	return opts, nil
}

func (c *runDailyCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	opts, err := c.options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	cfg, logger := setup()
	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	client := connectAMQP(logger, cfg)
	if client != nil {
		defer client.Close()
	}
	pub := cli.Publisher(client)

	recurring := services.NewRecurringService(repo, nil, pub)
	investments := services.NewInvestmentService(repo, nil, pub)
	proc := services.NewDailyProcessor(repo, nil, recurring, investments)

	report, err := proc.RunDaily(log.NewContext(ctx, logger), opts)
	if err != nil {
		logger.Error("Daily run failed", log.FieldError, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	} else {
		printReport(report, c.verbose)
	}
	if report.Errored > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// connectAMQP returns nil when the broker is disabled or unreachable; the
// batch still runs, only event publishing is lost.
func connectAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	client, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Continuing without ledger events", log.FieldError, err)
		return nil
	}
	return client
}
