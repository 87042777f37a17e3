package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

const recurringColumns = `id, user_id, name, type, amount_cents, frequency, day_of_period, account_id, category_id,
	start_date, end_date, is_active, notes, last_generated_date, created_at, updated_at`

func scanRecurring(row rowScanner) (core.RecurringTransaction, error) {
	var (
		r                core.RecurringTransaction
		category         sql.NullInt64
		cents            int64
		created, updated timestamp
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Type, &cents, &r.Frequency, &r.DayOfPeriod, &r.AccountID, &category,
		&r.StartDate, &r.EndDate, &r.IsActive, &r.Notes, &r.LastGeneratedDate, &created, &updated)
	if err != nil {
		return r, err
	}
	r.Amount = core.FromCents(cents)
	r.CategoryID = category.Int64
	r.CreatedAt, r.UpdatedAt = created.Time, updated.Time
	return r, nil
}

func (q *Queries) InsertRecurring(ctx context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	now := nowText()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO recurring_transactions (user_id, name, type, amount_cents, frequency, day_of_period, account_id,
			category_id, start_date, end_date, is_active, notes, last_generated_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Name, r.Type, core.Cents(r.Amount), r.Frequency, r.DayOfPeriod, r.AccountID,
		nullID(r.CategoryID), r.StartDate, r.EndDate, boolInt(r.IsActive), r.Notes, r.LastGeneratedDate, now, now)
	if err != nil {
		return r, fmt.Errorf("insert recurring transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return r, fmt.Errorf("recurring transaction id: %w", err)
	}
	return q.GetRecurring(ctx, r.UserID, id)
}

func (q *Queries) GetRecurring(ctx context.Context, userID, id int64) (core.RecurringTransaction, error) {
	r, err := scanRecurring(q.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return r, core.ErrRecurringNotFound
	}
	if err != nil {
		return r, fmt.Errorf("get recurring transaction %d: %w", id, err)
	}
	return r, nil
}

// UpdateRecurring rewrites the template fields. The generation watermark is
// only moved by SetRecurringWatermark.
func (q *Queries) UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET name = ?, type = ?, amount_cents = ?, frequency = ?, day_of_period = ?,
			account_id = ?, category_id = ?, start_date = ?, end_date = ?, is_active = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		r.Name, r.Type, core.Cents(r.Amount), r.Frequency, r.DayOfPeriod, r.AccountID, nullID(r.CategoryID),
		r.StartDate, r.EndDate, boolInt(r.IsActive), r.Notes, nowText(), r.ID, r.UserID)
	if err != nil {
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	return affected(res, core.ErrRecurringNotFound)
}

func (q *Queries) DeleteRecurring(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM recurring_transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return affected(res, core.ErrRecurringNotFound)
}

// ListRecurring returns the user's templates. activeOnly drops inactive ones.
func (q *Queries) ListRecurring(ctx context.Context, userID int64, activeOnly bool) ([]core.RecurringTransaction, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	return q.listRecurring(ctx, query+` ORDER BY id`, userID)
}

// ListActiveRecurring returns the active templates of every user, optionally
// of one transaction type. It feeds the daily generation batch.
func (q *Queries) ListActiveRecurring(ctx context.Context, typ core.TxType) ([]core.RecurringTransaction, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE is_active = 1`
	var args []any
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	return q.listRecurring(ctx, query+` ORDER BY id`, args...)
}

func (q *Queries) listRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Queries) SetRecurringWatermark(ctx context.Context, id int64, date core.Date) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE recurring_transactions SET last_generated_date = ?, updated_at = ? WHERE id = ?`, date, nowText(), id)
	if err != nil {
		return fmt.Errorf("set recurring watermark: %w", err)
	}
	return affected(res, core.ErrRecurringNotFound)
}
