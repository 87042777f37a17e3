package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const transactionColumns = `id, user_id, account_id, category_id, recurring_id, type, amount_cents, date, description, created_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                   core.Transaction
		category, recurring sql.NullInt64
		cents               int64
		created             timestamp
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &recurring, &t.Type, &cents, &t.Date, &t.Description, &created)
	if err != nil {
		return t, err
	}
	t.CategoryID = category.Int64
	t.RecurringID = recurring.Int64
	t.Amount = core.FromCents(cents)
	t.CreatedAt = created.Time
	return t, nil
}

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, account_id, category_id, recurring_id, type, amount_cents, date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, nullID(t.CategoryID), nullID(t.RecurringID), t.Type, core.Cents(t.Amount), t.Date, t.Description, nowText())
	if err != nil {
		return t, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return t, fmt.Errorf("transaction id: %w", err)
	}
	return q.GetTransaction(ctx, t.UserID, id)
}

func (q *Queries) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return t, core.ErrTransactionNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// GetTransactionByID is the unscoped lookup used by background workers.
func (q *Queries) GetTransactionByID(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, core.ErrTransactionNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, category_id = ?, type = ?, amount_cents = ?, date = ?, description = ?
		 WHERE id = ? AND user_id = ?`,
		t.AccountID, nullID(t.CategoryID), t.Type, core.Cents(t.Amount), t.Date, t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return affected(res, core.ErrTransactionNotFound)
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affected(res, core.ErrTransactionNotFound)
}

// IsManagedTransaction reports whether a debt payment or an investment
// movement owns the transaction.
func (q *Queries) IsManagedTransaction(ctx context.Context, id int64) (bool, error) {
	var managed bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM debt_payments WHERE transaction_id = ?1)
		    OR EXISTS (SELECT 1 FROM investment_transactions WHERE transaction_id = ?1)`, id).Scan(&managed)
	if err != nil {
		return false, fmt.Errorf("check managed transaction %d: %w", id, err)
	}
	return managed, nil
}

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	From       core.Date
	To         core.Date
	Type       core.TxType
	CategoryID int64
	AccountID  int64
	Limit      int
}

func (q *Queries) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, error) {
	var (
		sb   strings.Builder
		args = []any{userID}
	)
	sb.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`)
	if !f.From.IsZero() {
		sb.WriteString(` AND date >= ?`)
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		sb.WriteString(` AND date <= ?`)
		args = append(args, f.To)
	}
	if f.Type != "" {
		sb.WriteString(` AND type = ?`)
		args = append(args, f.Type)
	}
	if f.CategoryID != 0 {
		sb.WriteString(` AND category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.AccountID != 0 {
		sb.WriteString(` AND account_id = ?`)
		args = append(args, f.AccountID)
	}
	sb.WriteString(` ORDER BY date DESC, id DESC`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) CountTransactionsByRecurring(ctx context.Context, recurringID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE recurring_id = ?`, recurringID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count generated transactions: %w", err)
	}
	return n, nil
}

const transferColumns = `id, user_id, from_account_id, to_account_id, amount_cents, date, description, created_at`

func scanTransfer(row rowScanner) (core.Transfer, error) {
	var (
		t       core.Transfer
		cents   int64
		created timestamp
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.FromAccountID, &t.ToAccountID, &cents, &t.Date, &t.Description, &created); err != nil {
		return t, err
	}
	t.Amount = core.FromCents(cents)
	t.CreatedAt = created.Time
	return t, nil
}

func (q *Queries) InsertTransfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transfers (user_id, from_account_id, to_account_id, amount_cents, date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.FromAccountID, t.ToAccountID, core.Cents(t.Amount), t.Date, t.Description, nowText())
	if err != nil {
		return t, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return t, fmt.Errorf("transfer id: %w", err)
	}
	return q.GetTransfer(ctx, t.UserID, id)
}

func (q *Queries) GetTransfer(ctx context.Context, userID, id int64) (core.Transfer, error) {
	t, err := scanTransfer(q.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return t, core.ErrTransferNotFound
	}
	if err != nil {
		return t, fmt.Errorf("get transfer %d: %w", id, err)
	}
	return t, nil
}

func (q *Queries) UpdateTransfer(ctx context.Context, t core.Transfer) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transfers SET from_account_id = ?, to_account_id = ?, amount_cents = ?, date = ?, description = ?
		 WHERE id = ? AND user_id = ?`,
		t.FromAccountID, t.ToAccountID, core.Cents(t.Amount), t.Date, t.Description, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	return affected(res, core.ErrTransferNotFound)
}

func (q *Queries) DeleteTransfer(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transfer: %w", err)
	}
	return affected(res, core.ErrTransferNotFound)
}

// ListTransfers returns the user's transfers, optionally only those touching
// accountID on either leg.
func (q *Queries) ListTransfers(ctx context.Context, userID, accountID int64) ([]core.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE user_id = ?`
	args := []any{userID}
	if accountID != 0 {
		query += ` AND (from_account_id = ? OR to_account_id = ?)`
		args = append(args, accountID, accountID)
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PendingSync is a transaction not yet mirrored, or whose last mirror
// attempt failed.
type PendingSync struct {
	TransactionID int64
	Failed        bool
}

func (q *Queries) ListPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.id, s.status IS NOT NULL
		FROM transactions t
		LEFT JOIN transaction_sync s ON s.transaction_id = t.id
		WHERE s.transaction_id IS NULL OR s.status = 'error'
		ORDER BY t.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.TransactionID, &p.Failed); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) MarkSynced(ctx context.Context, transactionID int64, rowRef string) error {
	return q.upsertSync(ctx, transactionID, "synced", rowRef)
}

func (q *Queries) MarkSyncError(ctx context.Context, transactionID int64) error {
	return q.upsertSync(ctx, transactionID, "error", "")
}

func (q *Queries) upsertSync(ctx context.Context, transactionID int64, status, rowRef string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transaction_sync (transaction_id, status, row_ref, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO UPDATE SET status = excluded.status, row_ref = excluded.row_ref, updated_at = excluded.updated_at`,
		transactionID, status, rowRef, nowText())
	if err != nil {
		return fmt.Errorf("mark transaction %d %s: %w", transactionID, status, err)
	}
	return nil
}

func sumCents(ctx context.Context, db DBTX, query string, args ...any) (decimal.Decimal, error) {
	var cents int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return decimal.Zero, err
	}
	return core.FromCents(cents), nil
}
