package services

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// AccountService manages accounts, their derived available balance, direct
// balance corrections and reconciliation against the ledger.
type AccountService struct {
	store  Store
	events emitter
}

func NewAccountService(store Store, pub Publisher) *AccountService {
	return &AccountService{store: store, events: emitter{pub}}
}

func (s *AccountService) CreateAccount(ctx context.Context, userID int64, a core.Account) (core.Account, error) {
	a.UserID = userID
	if a.Currency == "" {
		a.Currency = core.DefaultCurrency
	}
	if a.Color == "" {
		a.Color = core.DefaultAccountColor
	}
	if err := a.Validate(); err != nil {
		return a, err
	}
	a.Currency, _ = core.NormalizeCurrency(a.Currency)

	created, err := s.store.Queries().CreateAccount(ctx, a)
	if err != nil {
		return a, err
	}
	slog.InfoContext(ctx, "Account created", "id", created.ID, "type", created.Type, "initial_balance", created.InitialBalance)
	return s.withCommitments(ctx, s.store.Queries(), created)
}

func (s *AccountService) GetAccount(ctx context.Context, userID, id int64) (core.Account, error) {
	q := s.store.Queries()
	a, err := q.GetAccount(ctx, userID, id)
	if err != nil {
		return a, err
	}
	return s.withCommitments(ctx, q, a)
}

func (s *AccountService) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	q := s.store.Queries()
	accounts, err := q.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i], err = s.withCommitments(ctx, q, accounts[i]); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// UpdateAccount changes name, type, currency and color. Balances are not
// editable here; use CorrectBalance.
func (s *AccountService) UpdateAccount(ctx context.Context, userID, id int64, a core.Account) (core.Account, error) {
	a.ID, a.UserID = id, userID
	if err := a.Validate(); err != nil {
		return a, err
	}
	a.Currency, _ = core.NormalizeCurrency(a.Currency)
	if err := s.store.Queries().UpdateAccount(ctx, a); err != nil {
		return a, err
	}
	return s.GetAccount(ctx, userID, id)
}

// DeleteAccount removes the account and, through the schema's cascades, its
// transactions and adjustments. An account that is still a leg of any
// transfer is refused: the cascade would drop the transfer while the other
// account keeps its effect.
func (s *AccountService) DeleteAccount(ctx context.Context, userID, id int64) error {
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.AccountLock(id)}, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, id); err != nil {
			return err
		}
		transfers, err := q.ListTransfers(ctx, userID, id)
		if err != nil {
			return err
		}
		if len(transfers) > 0 {
			return core.Detail(core.ErrAccountHasTransfers, "%d transfers reference account %d", len(transfers), id)
		}
		return q.DeleteAccount(ctx, userID, id)
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

// CorrectBalance sets the cached balance to newBalance and records the
// difference as a balance adjustment, so the ledger still justifies it.
func (s *AccountService) CorrectBalance(ctx context.Context, userID, accountID int64, newBalance decimal.Decimal, reason string) (core.BalanceAdjustment, error) {
	var adj core.BalanceAdjustment
	err := s.store.WithinTx(ctx, []storage.LockKey{storage.AccountLock(accountID)}, func(q *storage.Queries) error {
		a, err := q.GetAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		delta := core.Round2(newBalance).Sub(a.Balance)
		if delta.IsZero() {
			return core.Validationf("balance is already %s", core.FormatAmount(a.Balance, a.Currency))
		}
		adj, err = q.CreateBalanceAdjustment(ctx, core.BalanceAdjustment{AccountID: accountID, Delta: delta, Reason: reason})
		if err != nil {
			return err
		}
		return q.AddToBalance(ctx, accountID, delta)
	})
	if err != nil {
		return adj, err
	}

	slog.InfoContext(ctx, "Account balance corrected", "account_id", accountID, "delta", adj.Delta, "reason", reason)
	s.events.emit(ctx, amqp.EventBalanceCorrected, userID, accountID)
	return adj, nil
}

// Reconciliation compares an account's cached balance with the balance its
// log justifies.
type Reconciliation struct {
	AccountID int64              `json:"account_id"`
	Cached    decimal.Decimal    `json:"cached_balance"`
	Expected  decimal.Decimal    `json:"expected_balance"`
	Drift     decimal.Decimal    `json:"drift"`
	InSync    bool               `json:"in_sync"`
	Sums      storage.LedgerSums `json:"-"`
}

// Reconcile reads only; repairing drift is a CorrectBalance decision.
func (s *AccountService) Reconcile(ctx context.Context, userID, accountID int64) (Reconciliation, error) {
	q := s.store.Queries()
	a, err := q.GetAccount(ctx, userID, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	sums, err := q.AccountLedgerSums(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	expected := sums.Expected(a.InitialBalance)
	r := Reconciliation{
		AccountID: accountID,
		Cached:    a.Balance,
		Expected:  expected,
		Drift:     a.Balance.Sub(expected),
		Sums:      sums,
	}
	r.InSync = r.Drift.IsZero()
	if !r.InSync {
		slog.WarnContext(ctx, "Account balance drift", "account_id", accountID, "cached", r.Cached, "expected", r.Expected)
	}
	return r, nil
}

func (s *AccountService) withCommitments(ctx context.Context, q *storage.Queries, a core.Account) (core.Account, error) {
	committed, err := q.CommittedToGoals(ctx, a.ID)
	if err != nil {
		return a, err
	}
	a.CommittedToGoals = committed
	a.AvailableBalance = a.Balance.Sub(committed)
	return a, nil
}
