package services

import (
	"context"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/storage"
)

// The functions below are the balance mutation rules shared by every
// feature that moves money. They run inside a unit of work whose locks
// already cover the accounts they touch.

// postTransaction writes t and applies its signed amount to the account.
// Expenses must be covered by the account's raw balance.
func postTransaction(ctx context.Context, q *storage.Queries, t core.Transaction) (core.Transaction, error) {
	acct, err := q.GetAccount(ctx, t.UserID, t.AccountID)
	if err != nil {
		return t, err
	}
	if t.Type == core.Expense {
		if err := ensureFunds(acct, t.Amount); err != nil {
			return t, err
		}
	}
	created, err := q.InsertTransaction(ctx, t)
	if err != nil {
		return t, err
	}
	if err := q.AddToBalance(ctx, acct.ID, t.Type.Signed(t.Amount)); err != nil {
		return t, err
	}
	return created, nil
}

// reverseTransaction undoes t's effect on its account balance.
func reverseTransaction(ctx context.Context, q *storage.Queries, t core.Transaction) error {
	return q.AddToBalance(ctx, t.AccountID, t.Type.Signed(t.Amount).Neg())
}

func ensureFunds(a core.Account, amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return core.Detail(core.ErrInsufficientFunds, "%s has %s, needs %s",
			a.Name, core.FormatAmount(a.Balance, a.Currency), core.FormatAmount(amount, a.Currency))
	}
	return nil
}

// checkCategory verifies that an optional category is visible to the user
// and classifies the same transaction type.
func checkCategory(ctx context.Context, q *storage.Queries, userID, categoryID int64, typ core.TxType) error {
	if categoryID == 0 {
		return nil
	}
	c, err := q.GetCategory(ctx, userID, categoryID)
	if err != nil {
		return err
	}
	if c.Type != typ {
		return core.Detail(core.ErrCategoryMismatch, "%s is an %s category", c.Name, c.Type)
	}
	return nil
}
