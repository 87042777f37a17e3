package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/sheets"
)

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// PollInterval is how often to look for unmirrored transactions (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of transactions mirrored per poll (default: 50)
	BatchSize int

	// Names caches account and category names for rows. Renames show up
	// once the entry expires. Nil gets a private cache.
	Names cache.Cache[string]
}

const (
	mirrorNameCacheSize = 512
	mirrorNameCacheTTL  = 5 * time.Minute
)

// DefaultMirrorProcessorConfig returns sensible defaults
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    50,
	}
}

// MirrorProcessor copies ledger transactions to an external sheet. Ledger
// events drive it; the polling loop picks up anything an event missed and
// retries rows whose last attempt failed.
type MirrorProcessor struct {
	store  Store
	mirror sheets.Mirror
	config MirrorProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorProcessor(store Store, mirror sheets.Mirror, config MirrorProcessorConfig) *MirrorProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMirrorProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultMirrorProcessorConfig().BatchSize
	}
	if config.Names == nil {
		config.Names = cache.NewLRUCache[string](mirrorNameCacheSize, mirrorNameCacheTTL)
	}
	return &MirrorProcessor{store: store, mirror: mirror, config: config}
}

// HandleEvent applies one ledger event to the mirror. Events about other
// entities are ignored.
func (p *MirrorProcessor) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Kind {
	case amqp.EventTransactionCreated:
		return p.syncTransaction(ctx, ev.EntityID, false)
	case amqp.EventTransactionUpdated:
		return p.syncTransaction(ctx, ev.EntityID, true)
	case amqp.EventTransactionDeleted:
		if err := p.mirror.Delete(ctx, ev.EntityID); err != nil {
			return fmt.Errorf("delete mirrored transaction %d: %w", ev.EntityID, err)
		}
		slog.InfoContext(ctx, "Removed transaction from mirror", "transaction_id", ev.EntityID)
		return nil
	default:
		slog.DebugContext(ctx, "Ignoring ledger event", "kind", ev.Kind, "entity_id", ev.EntityID)
		return nil
	}
}

// ProcessPending mirrors up to one batch of transactions that were never
// mirrored or whose last attempt failed.
func (p *MirrorProcessor) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	items, err := p.store.Queries().ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending sync: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		// A failed row may already be half-written; replace it.
		if err := p.syncTransaction(ctx, item.TransactionID, item.Failed); err != nil {
			slog.WarnContext(ctx, "Mirror sync failed", "transaction_id", item.TransactionID, "error", err)
			failed++
			continue
		}
		synced++
	}
	if len(items) > 0 {
		slog.InfoContext(ctx, "Processed pending mirror batch", "synced", synced, "failed", failed)
	}
	return synced, failed, nil
}

func (p *MirrorProcessor) syncTransaction(ctx context.Context, id int64, replace bool) error {
	q := p.store.Queries()
	row, err := p.buildRow(ctx, id)
	if errors.Is(err, core.ErrTransactionNotFound) {
		// Deleted before we got to it; the delete event cleans up.
		return nil
	}
	if err != nil {
		return err
	}

	if replace {
		if err := p.mirror.Delete(ctx, id); err != nil {
			p.markError(ctx, id)
			return fmt.Errorf("replace mirrored transaction %d: %w", id, err)
		}
	}
	ref, err := p.mirror.Append(ctx, row)
	if err != nil {
		p.markError(ctx, id)
		return fmt.Errorf("append transaction %d: %w", id, err)
	}
	if err := q.MarkSynced(ctx, id, ref); err != nil {
		// The row is in the sheet; the next poll would append it twice
		// unless it is replaced, which the error status ensures.
		p.markError(ctx, id)
		return err
	}
	slog.InfoContext(ctx, "Mirrored transaction", "transaction_id", id, "row_ref", ref)
	return nil
}

func (p *MirrorProcessor) markError(ctx context.Context, id int64) {
	if err := p.store.Queries().MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark mirror error", "transaction_id", id, "error", err)
	}
}

func (p *MirrorProcessor) buildRow(ctx context.Context, id int64) (sheets.Row, error) {
	q := p.store.Queries()
	t, err := q.GetTransactionByID(ctx, id)
	if err != nil {
		return sheets.Row{}, err
	}
	account, currency, err := p.accountName(ctx, t)
	if err != nil {
		return sheets.Row{}, fmt.Errorf("account of transaction %d: %w", id, err)
	}
	category := core.UncategorizedName
	if t.CategoryID != 0 {
		name, err := p.categoryName(ctx, t)
		switch {
		case err == nil:
			category = name
		case !errors.Is(err, core.ErrCategoryNotFound):
			return sheets.Row{}, fmt.Errorf("category of transaction %d: %w", id, err)
		}
	}
	return sheets.Row{
		TransactionID: t.ID,
		Date:          t.Date,
		Type:          t.Type,
		Account:       account,
		Category:      category,
		Description:   t.Description,
		Amount:        t.Amount,
		Currency:      currency,
	}, nil
}

// accountName returns the account's name and currency, cached under one key
// as "currency|name".
func (p *MirrorProcessor) accountName(ctx context.Context, t core.Transaction) (string, string, error) {
	key := fmt.Sprintf("account:%d", t.AccountID)
	if v, ok := p.config.Names.Get(key); ok {
		currency, name, _ := strings.Cut(v, "|")
		return name, currency, nil
	}
	acc, err := p.store.Queries().GetAccount(ctx, t.UserID, t.AccountID)
	if err != nil {
		return "", "", err
	}
	p.config.Names.Set(key, acc.Currency+"|"+acc.Name)
	return acc.Name, acc.Currency, nil
}

func (p *MirrorProcessor) categoryName(ctx context.Context, t core.Transaction) (string, error) {
	key := fmt.Sprintf("category:%d", t.CategoryID)
	if v, ok := p.config.Names.Get(key); ok {
		return v, nil
	}
	c, err := p.store.Queries().GetCategory(ctx, t.UserID, t.CategoryID)
	if err != nil {
		return "", err
	}
	p.config.Names.Set(key, c.Name)
	return c.Name, nil
}

// Start begins the polling loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Mirror processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *MirrorProcessor) poll(ctx context.Context) {
	if _, _, err := p.ProcessPending(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Failed to process pending mirror batch", "error", err)
	}
}
