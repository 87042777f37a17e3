// Package services holds the ledger operations. Every write runs as one unit
// of work on the Store while holding the row locks of the entities whose
// running totals it changes; events are published only after commit.
package services

import (
	"context"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// Store is the unit-of-work boundary the services need.
type Store interface {
	Queries() *storage.Queries
	WithinTx(ctx context.Context, keys []storage.LockKey, fn func(*storage.Queries) error) error
}

// Publisher receives ledger events after a write commits.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Clock returns the current calendar day. Tests pin it.
type Clock func() time.Time

// emitter publishes events on a best-effort basis: the write has already
// committed, so a failed publish is logged and swallowed.
type emitter struct {
	pub Publisher
}

func (e emitter) emit(ctx context.Context, kind amqp.EventKind, userID, entityID int64) {
	if e.pub == nil {
		slog.DebugContext(ctx, "Publisher not configured, skipping ledger event", "kind", kind, "entity_id", entityID)
		return
	}
	if err := e.pub.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(kind, userID, entityID)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event", "kind", kind, "entity_id", entityID, "error", err)
	}
}

func (c Clock) today() core.Date {
	if c == nil {
		return core.DateOf(time.Now())
	}
	return core.DateOf(c())
}
