package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

func (q *Queries) CreateUser(ctx context.Context, email, name string) (core.User, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO users (email, name, created_at) VALUES (?, ?, ?)`,
		email, name, nowText())
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return core.User{ID: id, Email: email, Name: name}, nil
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := q.db.QueryRowContext(ctx, `SELECT id, email, name FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return u, core.NotFoundf("user not found")
	}
	if err != nil {
		return u, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

const accountColumns = `id, user_id, name, type, initial_balance_cents, balance_cents, currency, color, created_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                core.Account
		initial, balance int64
		created          timestamp
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &initial, &balance, &a.Currency, &a.Color, &created); err != nil {
		return a, err
	}
	a.InitialBalance = core.FromCents(initial)
	a.Balance = core.FromCents(balance)
	a.CreatedAt = created.Time
	a.AvailableBalance = a.Balance
	return a, nil
}

// CreateAccount inserts an account whose balance starts at its initial balance.
func (q *Queries) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	created := nowText()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, type, initial_balance_cents, balance_cents, currency, color, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Name, a.Type, core.Cents(a.InitialBalance), core.Cents(a.InitialBalance), a.Currency, a.Color, created)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return q.GetAccount(ctx, a.UserID, id)
}

func (q *Queries) GetAccount(ctx context.Context, userID, id int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return a, core.ErrAccountNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FirstAccount returns the user's oldest account.
func (q *Queries) FirstAccount(ctx context.Context, userID int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return a, core.ErrAccountNotFound
	}
	if err != nil {
		return a, fmt.Errorf("first account: %w", err)
	}
	return a, nil
}

// UpdateAccount changes descriptive fields only. Balances move through
// AddToBalance and SetBalance.
func (q *Queries) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, currency = ?, color = ? WHERE id = ? AND user_id = ?`,
		a.Name, a.Type, a.Currency, a.Color, a.ID, a.UserID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return affected(res, core.ErrAccountNotFound)
}

func (q *Queries) DeleteAccount(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return affected(res, core.ErrAccountNotFound)
}

func (q *Queries) AddToBalance(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`, core.Cents(delta), accountID)
	if err != nil {
		return fmt.Errorf("update balance of account %d: %w", accountID, err)
	}
	return affected(res, core.ErrAccountNotFound)
}

func (q *Queries) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ? WHERE id = ?`, core.Cents(balance), accountID)
	if err != nil {
		return fmt.Errorf("set balance of account %d: %w", accountID, err)
	}
	return affected(res, core.ErrAccountNotFound)
}

func (q *Queries) CountAccounts(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (q *Queries) TotalBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance_cents), 0) FROM accounts WHERE user_id = ?`, userID).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("total balance: %w", err)
	}
	return core.FromCents(cents), nil
}

func (q *Queries) CreateBalanceAdjustment(ctx context.Context, adj core.BalanceAdjustment) (core.BalanceAdjustment, error) {
	created := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO balance_adjustments (account_id, delta_cents, reason, created_at) VALUES (?, ?, ?, ?)`,
		adj.AccountID, core.Cents(adj.Delta), adj.Reason, timeText(created))
	if err != nil {
		return adj, fmt.Errorf("insert balance adjustment: %w", err)
	}
	if adj.ID, err = res.LastInsertId(); err != nil {
		return adj, fmt.Errorf("balance adjustment id: %w", err)
	}
	adj.CreatedAt = created
	return adj, nil
}

// LedgerSums are the components of an account's balance as recorded in the log.
type LedgerSums struct {
	Income      decimal.Decimal
	Expense     decimal.Decimal
	TransferIn  decimal.Decimal
	TransferOut decimal.Decimal
	Adjustments decimal.Decimal
}

// Expected is the balance the log justifies on top of the initial balance.
func (s LedgerSums) Expected(initial decimal.Decimal) decimal.Decimal {
	return initial.Add(s.Income).Sub(s.Expense).Add(s.TransferIn).Sub(s.TransferOut).Add(s.Adjustments)
}

func (q *Queries) AccountLedgerSums(ctx context.Context, accountID int64) (LedgerSums, error) {
	var income, expense, in, out, adj int64
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ?1 AND type = 'Income'),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ?1 AND type = 'Expense'),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM transfers WHERE to_account_id = ?1),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM transfers WHERE from_account_id = ?1),
			(SELECT COALESCE(SUM(delta_cents), 0) FROM balance_adjustments WHERE account_id = ?1)`,
		accountID).Scan(&income, &expense, &in, &out, &adj)
	if err != nil {
		return LedgerSums{}, fmt.Errorf("ledger sums of account %d: %w", accountID, err)
	}
	return LedgerSums{
		Income:      core.FromCents(income),
		Expense:     core.FromCents(expense),
		TransferIn:  core.FromCents(in),
		TransferOut: core.FromCents(out),
		Adjustments: core.FromCents(adj),
	}, nil
}

// CommittedToGoals sums money reserved in the account by in-progress legacy
// goals and active goal-type investments. Insurance policies are not counted.
func (q *Queries) CommittedToGoals(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(current_cents), 0) FROM goals
			  WHERE account_id = ?1 AND status = 'In Progress') +
			(SELECT COALESCE(SUM(current_cents), 0) FROM investments
			  WHERE account_id = ?1 AND type = 'goal' AND status = 'active')`,
		accountID).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("committed funds of account %d: %w", accountID, err)
	}
	return core.FromCents(cents), nil
}
