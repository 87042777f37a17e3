package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentRecurring)

	logger.Info("Starting recurring-worker")

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	// Without a broker the worker still runs on its ticker; events are
	// simply not published.
	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without messaging", log.FieldError, err)
		amqpClient = nil
	}
	if amqpClient != nil {
		defer amqpClient.Close()
	}
	pub := cli.Publisher(amqpClient)

	recurring := services.NewRecurringService(repo, nil, pub)
	investments := services.NewInvestmentService(repo, nil, pub)
	generation := worker.NewGenerationWorker(services.NewDailyProcessor(repo, nil, recurring, investments))

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	logger.Info("Recurring processor configured", "interval", cfg.RecurringInterval, "sqlite_db", cfg.SQLiteDBPath)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runTick(gctx, logger, recurring, generation)

		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				runTick(gctx, logger, recurring, generation)
			}
		}
	})

	if amqpClient != nil {
		g.Go(func() error {
			logger.Info("Consuming generation requests", log.FieldQueue, cfg.AMQPGenerationQueue)
			return generation.Consume(gctx, amqpClient)
		})
	} else {
		logger.Info("Skipping generation request consumption - no AMQP client")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Recurring worker stopped", log.FieldError, err)
		stop()
		<-done
		os.Exit(1)
	}
	stop()
	<-done
}

// runTick catches up on missed monthly templates, then runs today's batch.
func runTick(ctx context.Context, logger *log.Logger, recurring *services.RecurringService, generation *worker.GenerationWorker) {
	l := logger.WithFields(log.NewFields().WithOperation(log.OpCatchUp))
	if gens, err := recurring.CatchUpMissed(ctx, core.DateOf(time.Now())); err != nil {
		l.Error("Catch-up failed", log.FieldError, err)
	} else if len(gens) > 0 {
		l.Info("Caught up missed recurring transactions", "generated", len(gens))
	}

	report, err := generation.Run(ctx, services.DailyOptions{})
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Periodic processing failed", log.FieldError, err)
		}
		return
	}
	logger.Info("Periodic processing complete",
		log.FieldRunID, report.RunID, "generated", report.Generated, "errored", report.Errored)
}
