package services

import (
	"context"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// TransferService moves money between two accounts of the same user. Both
// legs always commit together.
type TransferService struct {
	store  Store
	events emitter
}

func NewTransferService(store Store, pub Publisher) *TransferService {
	return &TransferService{store: store, events: emitter{pub}}
}

func (s *TransferService) CreateTransfer(ctx context.Context, userID int64, t core.Transfer) (core.Transfer, error) {
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return t, err
	}

	keys := []storage.LockKey{storage.AccountLock(t.FromAccountID), storage.AccountLock(t.ToAccountID)}
	var created core.Transfer
	err := s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		if err := applyTransfer(ctx, q, t); err != nil {
			return err
		}
		var err error
		created, err = q.InsertTransfer(ctx, t)
		return err
	})
	if err != nil {
		return t, err
	}

	slog.InfoContext(ctx, "Transfer created",
		"id", created.ID, "from_account_id", t.FromAccountID, "to_account_id", t.ToAccountID, "amount", t.Amount)
	s.events.emit(ctx, amqp.EventTransferCreated, userID, created.ID)
	return created, nil
}

// UpdateTransfer reverses the stored transfer and applies the new one. Both
// the old and the new legs are locked.
func (s *TransferService) UpdateTransfer(ctx context.Context, userID, id int64, t core.Transfer) (core.Transfer, error) {
	t.ID, t.UserID = id, userID
	if err := t.Validate(); err != nil {
		return t, err
	}
	old, err := s.store.Queries().GetTransfer(ctx, userID, id)
	if err != nil {
		return t, err
	}

	keys := []storage.LockKey{
		storage.AccountLock(old.FromAccountID), storage.AccountLock(old.ToAccountID),
		storage.AccountLock(t.FromAccountID), storage.AccountLock(t.ToAccountID),
	}
	var updated core.Transfer
	err = s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		cur, err := q.GetTransfer(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.FromAccountID != old.FromAccountID || cur.ToAccountID != old.ToAccountID {
			return core.ErrConcurrentWrite
		}
		if err := reverseTransfer(ctx, q, cur); err != nil {
			return err
		}
		if err := applyTransfer(ctx, q, t); err != nil {
			return err
		}
		if err := q.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		updated, err = q.GetTransfer(ctx, userID, id)
		return err
	})
	if err != nil {
		return t, err
	}

	slog.InfoContext(ctx, "Transfer updated", "id", id, "amount", updated.Amount)
	s.events.emit(ctx, amqp.EventTransferUpdated, userID, id)
	return updated, nil
}

func (s *TransferService) DeleteTransfer(ctx context.Context, userID, id int64) error {
	old, err := s.store.Queries().GetTransfer(ctx, userID, id)
	if err != nil {
		return err
	}

	keys := []storage.LockKey{storage.AccountLock(old.FromAccountID), storage.AccountLock(old.ToAccountID)}
	err = s.store.WithinTx(ctx, keys, func(q *storage.Queries) error {
		cur, err := q.GetTransfer(ctx, userID, id)
		if err != nil {
			return err
		}
		if cur.FromAccountID != old.FromAccountID || cur.ToAccountID != old.ToAccountID {
			return core.ErrConcurrentWrite
		}
		if err := reverseTransfer(ctx, q, cur); err != nil {
			return err
		}
		return q.DeleteTransfer(ctx, userID, id)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transfer deleted", "id", id)
	s.events.emit(ctx, amqp.EventTransferDeleted, userID, id)
	return nil
}

func (s *TransferService) GetTransfer(ctx context.Context, userID, id int64) (core.Transfer, error) {
	return s.store.Queries().GetTransfer(ctx, userID, id)
}

// ListTransfers returns the user's transfers, or only those touching
// accountID when it is non-zero.
func (s *TransferService) ListTransfers(ctx context.Context, userID, accountID int64) ([]core.Transfer, error) {
	return s.store.Queries().ListTransfers(ctx, userID, accountID)
}

// applyTransfer checks ownership of both accounts and the source's raw
// balance, then moves the amount.
func applyTransfer(ctx context.Context, q *storage.Queries, t core.Transfer) error {
	from, err := q.GetAccount(ctx, t.UserID, t.FromAccountID)
	if err != nil {
		return err
	}
	if _, err := q.GetAccount(ctx, t.UserID, t.ToAccountID); err != nil {
		return err
	}
	if err := ensureFunds(from, t.Amount); err != nil {
		return err
	}
	if err := q.AddToBalance(ctx, t.FromAccountID, t.Amount.Neg()); err != nil {
		return err
	}
	return q.AddToBalance(ctx, t.ToAccountID, t.Amount)
}

func reverseTransfer(ctx context.Context, q *storage.Queries, t core.Transfer) error {
	if err := q.AddToBalance(ctx, t.FromAccountID, t.Amount); err != nil {
		return err
	}
	return q.AddToBalance(ctx, t.ToAccountID, t.Amount.Neg())
}
