// Package cli provides the initialization shared by cmd/budgetctl,
// cmd/recurring-worker and cmd/ledger-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budget/internal/amqp"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	"budget/internal/sheets/memory"
	"budget/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the component logger at the configured level and makes
// it the default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Component = component
	lc.JSON = os.Getenv("LOG_FORMAT") == "json"
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger database, applying migrations.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, cfg *config.Config) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, storage.WithLockTimeout(cfg.LockTimeout))
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return repo
}

// InitAMQP connects to the broker when AMQP_URL is set. A nil client means
// messaging is disabled.
func InitAMQP(logger *log.Logger, cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
		Exchange:        cfg.AMQPExchange,
		EventsQueue:     cfg.AMQPEventsQueue,
		GenerationQueue: cfg.AMQPGenerationQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("amqp client: %w", err)
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	return client, nil
}

// Publisher adapts an optional client to the services' publisher. A nil
// client yields a nil interface so services skip publishing.
func Publisher(client *amqp.Client) services.Publisher {
	if client == nil {
		return nil
	}
	return client
}

// InitMirror builds the configured spreadsheet mirror. It returns nil for
// the none backend.
func InitMirror(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.Mirror, error) {
	switch cfg.MirrorBackend {
	case config.MirrorSheets:
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("google sheets mirror: %w", err)
		}
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		return client, nil
	case config.MirrorMemory:
		logger.Info("Using in-memory mirror")
		return memory.New(), nil
	default:
		return nil, nil
	}
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or stop.
// cleanup runs after cancellation, bounded by timeout; done closes when it
// returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, stop context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, cancel, finished
}
