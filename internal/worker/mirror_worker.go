package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/services"
)

// EventSource delivers ledger events until ctx ends.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// MirrorWorker keeps the spreadsheet mirror in step with the ledger: events
// are applied as they arrive and the processor's polling loop covers anything
// missed while the worker or the sheet was down.
type MirrorWorker struct {
	processor *services.MirrorProcessor
	startup   int
}

// NewMirrorWorker creates a worker; startupBatches bounds how many pending
// batches are drained before consuming events.
func NewMirrorWorker(processor *services.MirrorProcessor, startupBatches int) *MirrorWorker {
	if startupBatches < 1 {
		startupBatches = 1
	}
	return &MirrorWorker{processor: processor, startup: startupBatches}
}

// HandleEvent applies one event. Failures are logged and acknowledged: the
// transaction is left marked as failed and the next poll retries it, so the
// broker never redelivers in a tight loop.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event", "id", ev.ID, "kind", ev.Kind, "entity_id", ev.EntityID)
	if err := w.processor.HandleEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to mirror ledger event",
			"id", ev.ID, "kind", ev.Kind, "entity_id", ev.EntityID, "error", err)
	}
	return nil
}

// StartupSyncCheck drains transactions that were never mirrored, for example
// after the worker was down.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	total, failedTotal := 0, 0
	for i := 0; i < w.startup; i++ {
		synced, failed, err := w.processor.ProcessPending(ctx)
		if err != nil {
			return fmt.Errorf("startup sync check: %w", err)
		}
		total += synced
		failedTotal += failed
		if synced == 0 {
			break
		}
	}
	slog.InfoContext(ctx, "Startup sync completed", "synced", total, "errors", failedTotal)
	return nil
}

// Run performs the startup check, starts the polling loop and consumes
// events until ctx ends. A nil source runs the polling loop alone.
func (w *MirrorWorker) Run(ctx context.Context, source EventSource) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed startup sync check", "error", err)
	}
	if err := w.processor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := w.processor.Stop(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "Mirror processor did not stop cleanly", "error", err)
		}
	}()

	if source == nil {
		slog.InfoContext(ctx, "No event source configured, relying on polling")
		<-ctx.Done()
		return nil
	}
	err := source.ConsumeLedgerEvents(ctx, w.HandleEvent)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
