package main

import (
	"os"
	"time"

	"budget/internal/cache"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/worker"
)

const (
	// startupBatches bounds the backlog mirrored before events are consumed.
	startupBatches = 20

	nameCacheSize = 1024
	nameCacheTTL  = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentMirror)

	logger.Info("Starting ledger-worker", log.FieldBackend, cfg.MirrorBackend)

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	defer stop()
	ctx = log.NewContext(ctx, logger)

	mirror, err := cli.InitMirror(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize mirror", log.FieldError, err)
		os.Exit(1)
	}
	if mirror == nil {
		logger.Info("Mirror disabled - MIRROR_BACKEND is none, nothing to do")
		return
	}

	amqpClient, err := cli.InitAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// The source must stay a nil interface when there is no broker.
	var source worker.EventSource
	if amqpClient != nil {
		defer amqpClient.Close()
		source = amqpClient
		logger.Info("Consuming ledger events", log.FieldQueue, cfg.AMQPEventsQueue)
	} else {
		logger.Info("Skipping ledger event consumption - no AMQP client, polling only")
	}

	names := cache.NewLRUCache[string](nameCacheSize, nameCacheTTL)
	go cache.NewJanitor(names).Run(ctx, nameCacheTTL)

	processor := services.NewMirrorProcessor(repo, mirror, services.MirrorProcessorConfig{
		PollInterval: cfg.MirrorInterval,
		BatchSize:    cfg.MirrorBatchSize,
		Names:        names,
	})
	w := worker.NewMirrorWorker(processor, startupBatches)

	if err := w.Run(ctx, source); err != nil && ctx.Err() == nil {
		logger.Error("Ledger worker stopped", log.FieldError, err)
		stop()
		<-done
		os.Exit(1)
	}
	stop()
	<-done
}
