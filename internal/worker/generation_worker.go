package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/services"
)

// RequestSource delivers generation requests until ctx ends.
type RequestSource interface {
	ConsumeGenerationRequests(ctx context.Context, handler func(context.Context, *amqp.GenerationRequest) error) error
}

// Runner is the daily batch.
type Runner interface {
	RunDaily(ctx context.Context, opts services.DailyOptions) (*services.DailyReport, error)
}

// GenerationWorker runs the daily batch on demand, from generation requests
// and from the recurring worker's ticker. Runs never overlap inside one
// process; across processes the row locks keep generation at most once.
type GenerationWorker struct {
	runner Runner
	mu     sync.Mutex
}

func NewGenerationWorker(runner Runner) *GenerationWorker {
	return &GenerationWorker{runner: runner}
}

// RequestOptions turns a generation request into batch options.
func RequestOptions(req *amqp.GenerationRequest) (services.DailyOptions, error) {
	opts := services.DailyOptions{DryRun: req.DryRun}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return opts, fmt.Errorf("request %s: %w", req.ID, err)
		}
		opts.Today = d
	}
	if req.Type != "" {
		typ, err := core.ParseTxType(strings.TrimSpace(req.Type))
		if err != nil {
			return opts, fmt.Errorf("request %s: %w", req.ID, err)
		}
		opts.Type = typ
	}
	return opts, nil
}

// HandleRequest runs the batch for one request. A request that cannot be
// parsed is logged and dropped; a failed run is returned so the broker
// redelivers it.
func (w *GenerationWorker) HandleRequest(ctx context.Context, req *amqp.GenerationRequest) error {
	opts, err := RequestOptions(req)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping invalid generation request", "id", req.ID, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "Processing generation request",
		"id", req.ID, "dry_run", opts.DryRun, "type", opts.Type, "date", req.Date)
	_, err = w.Run(ctx, opts)
	return err
}

// Run executes one batch, serialized with any other run of this worker.
func (w *GenerationWorker) Run(ctx context.Context, opts services.DailyOptions) (*services.DailyReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	report, err := w.runner.RunDaily(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("run daily: %w", err)
	}
	return report, nil
}

// Consume delivers requests from source until ctx ends.
func (w *GenerationWorker) Consume(ctx context.Context, source RequestSource) error {
	err := source.ConsumeGenerationRequests(ctx, w.HandleRequest)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
