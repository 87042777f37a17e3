package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"budget/internal/amqp"
	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/log"
)

type triggerCmd struct {
	dryRun bool
	txType string
	date   string
}

func (*triggerCmd) Name() string     { return "trigger" }
func (*triggerCmd) Synopsis() string { return "ask recurring-worker to run the daily batch" }
func (*triggerCmd) Usage() string {
	return `budgetctl trigger [-dry-run] [-type income|expense] [-d <date>]

  Publishes a generation request on AMQP_GENERATION_QUEUE. Requires AMQP_URL.
`
}

func (c *triggerCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "request a dry run")
	f.StringVar(&c.txType, "type", "", "only process templates of this type (income, expense)")
	f.StringVar(&c.date, "d", "", "day to process, YYYY-MM-DD (defaults to the worker's today)")
}

func (c *triggerCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.date != "" {
		if _, err := core.ParseDate(c.date); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	if c.txType != "" {
		if _, err := core.ParseTxType(c.txType); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
	}

	cfg, logger := setup()
	logger = logger.WithFields(log.NewFields().WithOperation(log.OpTrigger))

	client, err := cli.InitAMQP(logger, cfg)
	if err == nil && client == nil {
		err = errors.New("AMQP_URL is not set")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer client.Close()

	req := amqp.NewGenerationRequest(c.dryRun, c.txType, c.date)
	if err := client.PublishGenerationRequest(ctx, req); err != nil {
		logger.Error("Failed to publish generation request", log.FieldError, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	logger.Info("Generation request published", log.FieldRequestID, req.ID, log.FieldQueue, cfg.AMQPGenerationQueue)
	printSuccess("requested run %s", req.ID)
	return subcommands.ExitSuccess
}
