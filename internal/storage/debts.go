package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const debtColumns = `id, user_id, creditor, principal_cents, interest_rate, interest_type, term_months,
	monthly_payment_cents, amount_paid_cents, start_date, status, notes, created_at, updated_at`

func scanDebt(row rowScanner) (core.Debt, error) {
	var (
		d                  core.Debt
		principal, monthly int64
		paid               int64
		rate               string
		created, updated   timestamp
	)
	err := row.Scan(&d.ID, &d.UserID, &d.Creditor, &principal, &rate, &d.InterestType, &d.TermMonths,
		&monthly, &paid, &d.StartDate, &d.Status, &d.Notes, &created, &updated)
	if err != nil {
		return d, err
	}
	if d.InterestRate, err = decimal.NewFromString(rate); err != nil {
		return d, fmt.Errorf("parse interest rate %q: %w", rate, err)
	}
	d.Principal = core.FromCents(principal)
	d.MonthlyPayment = core.FromCents(monthly)
	d.AmountPaid = core.FromCents(paid)
	d.CreatedAt, d.UpdatedAt = created.Time, updated.Time
	return d, nil
}

func (q *Queries) InsertDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	now := nowText()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO debts (user_id, creditor, principal_cents, interest_rate, interest_type, term_months,
			monthly_payment_cents, amount_paid_cents, start_date, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Creditor, core.Cents(d.Principal), d.InterestRate.String(), d.InterestType, d.TermMonths,
		core.Cents(d.MonthlyPayment), core.Cents(d.AmountPaid), d.StartDate, d.Status, d.Notes, now, now)
	if err != nil {
		return d, fmt.Errorf("insert debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return d, fmt.Errorf("debt id: %w", err)
	}
	return q.GetDebt(ctx, d.UserID, id)
}

func (q *Queries) GetDebt(ctx context.Context, userID, id int64) (core.Debt, error) {
	d, err := scanDebt(q.db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return d, core.ErrDebtNotFound
	}
	if err != nil {
		return d, fmt.Errorf("get debt %d: %w", id, err)
	}
	return d, nil
}

func (q *Queries) UpdateDebt(ctx context.Context, d core.Debt) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE debts SET creditor = ?, principal_cents = ?, interest_rate = ?, interest_type = ?, term_months = ?,
			monthly_payment_cents = ?, amount_paid_cents = ?, start_date = ?, status = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		d.Creditor, core.Cents(d.Principal), d.InterestRate.String(), d.InterestType, d.TermMonths,
		core.Cents(d.MonthlyPayment), core.Cents(d.AmountPaid), d.StartDate, d.Status, d.Notes, nowText(), d.ID, d.UserID)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	return affected(res, core.ErrDebtNotFound)
}

func (q *Queries) DeleteDebt(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM debts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	return affected(res, core.ErrDebtNotFound)
}

// ListDebts returns the user's debts, optionally of one status.
func (q *Queries) ListDebts(ctx context.Context, userID int64, status core.DebtStatus) ([]core.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var out []core.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SumActiveDebtPayments is the monthly outflow committed to active debts.
func (q *Queries) SumActiveDebtPayments(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return sumCents(ctx, q.db,
		`SELECT COALESCE(SUM(monthly_payment_cents), 0) FROM debts WHERE user_id = ? AND status = 'Active'`, userID)
}

func (q *Queries) InsertDebtPayment(ctx context.Context, p core.DebtPayment) (core.DebtPayment, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO debt_payments (debt_id, account_id, transaction_id, amount_cents, date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.DebtID, nullID(p.AccountID), nullID(p.TransactionID), core.Cents(p.Amount), p.Date, p.Notes, nowText())
	if err != nil {
		return p, fmt.Errorf("insert debt payment: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, fmt.Errorf("debt payment id: %w", err)
	}
	return p, nil
}

// ListDebtPayments returns a debt's payments, newest first.
func (q *Queries) ListDebtPayments(ctx context.Context, debtID int64) ([]core.DebtPayment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, debt_id, account_id, transaction_id, amount_cents, date, notes, created_at
		 FROM debt_payments WHERE debt_id = ? ORDER BY date DESC, id DESC`, debtID)
	if err != nil {
		return nil, fmt.Errorf("list debt payments: %w", err)
	}
	defer rows.Close()

	var out []core.DebtPayment
	for rows.Next() {
		var (
			p           core.DebtPayment
			account, tx sql.NullInt64
			cents       int64
			created     timestamp
		)
		if err := rows.Scan(&p.ID, &p.DebtID, &account, &tx, &cents, &p.Date, &p.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan debt payment: %w", err)
		}
		p.AccountID, p.TransactionID = account.Int64, tx.Int64
		p.Amount = core.FromCents(cents)
		p.CreatedAt = created.Time
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) CountDebtPayments(ctx context.Context, debtID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM debt_payments WHERE debt_id = ?`, debtID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count debt payments: %w", err)
	}
	return n, nil
}
