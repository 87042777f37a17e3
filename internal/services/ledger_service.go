package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// LedgerService creates, edits and removes transactions while keeping each
// account's cached balance equal to what its log justifies.
type LedgerService struct {
	store  Store
	events emitter
}

func NewLedgerService(store Store, pub Publisher) *LedgerService {
	return &LedgerService{store: store, events: emitter{pub}}
}

func (s *LedgerService) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	t.UserID = userID
	t.RecurringID = 0
	if err := t.Validate(); err != nil {
		return t, err
	}

	var created core.Transaction
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.AccountLock(t.AccountID)}, func(q *storage.Queries) error {
		if err := checkCategory(ctx, q, userID, t.CategoryID, t.Type); err != nil {
			return err
		}
		var err error
		created, err = postTransaction(ctx, q, t)
		return err
	})
	if err != nil {
		return t, err
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID, "account_id", created.AccountID, "type", created.Type, "amount", created.Amount)
	s.events.emit(ctx, amqp.EventTransactionCreated, userID, created.ID)
	return created, nil
}

// UpdateTransaction replaces the editable fields of a transaction. The old
// effect is reversed before the new one is checked and applied, so moving an
// expense between accounts or changing its amount sees the restored balance.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id int64, t core.Transaction) (core.Transaction, error) {
	t.ID, t.UserID = id, userID
	if err := t.Validate(); err != nil {
		return t, err
	}
	old, err := s.store.Queries().GetTransaction(ctx, userID, id)
	if err != nil {
		return t, err
	}

	keys := []storage.LockKey{storage.AccountLock(old.AccountID), storage.AccountLock(t.AccountID)}
	var updated core.Transaction
	err = s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		cur, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.AccountID != old.AccountID {
			return core.ErrConcurrentWrite
		}
		if err := ensureUnmanaged(ctx, q, id); err != nil {
			return err
		}
		if err := checkCategory(ctx, q, userID, t.CategoryID, t.Type); err != nil {
			return err
		}
		if err := reverseTransaction(ctx, q, cur); err != nil {
			return err
		}
		acct, err := q.GetAccount(ctx, userID, t.AccountID)
		if err != nil {
			return err
		}
		if t.Type == core.Expense {
			if err := ensureFunds(acct, t.Amount); err != nil {
				return err
			}
		}
		t.RecurringID = cur.RecurringID
		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if err := q.AddToBalance(ctx, t.AccountID, t.Type.Signed(t.Amount)); err != nil {
			return err
		}
		updated, err = q.GetTransaction(ctx, userID, id)
		return err
	})
	if err != nil {
		return t, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "account_id", updated.AccountID, "amount", updated.Amount)
	s.events.emit(ctx, amqp.EventTransactionUpdated, userID, id)
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	old, err := s.store.Queries().GetTransaction(ctx, userID, id)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, []storage.LockKey{storage.AccountLock(old.AccountID)}, func(q *storage.Queries) error {
		cur, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.AccountID != old.AccountID {
			return core.ErrConcurrentWrite
		}
		if err := ensureUnmanaged(ctx, q, id); err != nil {
			return err
		}
		if err := reverseTransaction(ctx, q, cur); err != nil {
			return err
		}
		return q.DeleteTransaction(ctx, userID, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "account_id", old.AccountID)
	s.events.emit(ctx, amqp.EventTransactionDeleted, userID, id)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.Queries().GetTransaction(ctx, userID, id)
}

// TransactionQuery filters a listing. Search matches the description or the
// category name, ignoring case and accents.
type TransactionQuery struct {
	storage.TransactionFilter
	Search string
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, query TransactionQuery) ([]core.Transaction, error) {
	q := s.store.Queries()
	filter := query.TransactionFilter
	if query.Search != "" {
		// The limit applies after matching.
		filter.Limit = 0
	}
	txs, err := q.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if query.Search == "" {
		return txs, nil
	}

	cats, err := q.ListCategories(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	out := txs[:0]
	for _, t := range txs {
		if core.ContainsFolded(t.Description, query.Search) || core.ContainsFolded(names[t.CategoryID], query.Search) {
			out = append(out, t)
			if query.Limit > 0 && len(out) == query.Limit {
				break
			}
		}
	}
	return out, nil
}

// ensureUnmanaged rejects direct edits of rows owned by a debt payment or an
// investment movement; those change only through their own operations.
func ensureUnmanaged(ctx context.Context, q *storage.Queries, id int64) error {
	managed, err := q.IsManagedTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("check transaction %d: %w", id, err)
	}
	if managed {
		return core.ErrManagedTransaction
	}
	return nil
}
