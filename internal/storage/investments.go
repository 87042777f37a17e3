package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

const investmentColumns = `id, user_id, type, name, account_id, initial_cents, current_cents, target_cents,
	policy_number, institution, expected_return_rate, maturity_term_months, maturity_date, start_date,
	deadline, status, notes, last_return_date, created_at, updated_at`

func scanInvestment(row rowScanner) (core.Investment, error) {
	var (
		inv              core.Investment
		account, target  sql.NullInt64
		term             sql.NullInt64
		rate             sql.NullString
		initial, current int64
		created, updated timestamp
	)
	err := row.Scan(&inv.ID, &inv.UserID, &inv.Type, &inv.Name, &account, &initial, &current, &target,
		&inv.PolicyNumber, &inv.Institution, &rate, &term, &inv.MaturityDate, &inv.StartDate,
		&inv.Deadline, &inv.Status, &inv.Notes, &inv.LastReturnDate, &created, &updated)
	if err != nil {
		return inv, err
	}
	inv.AccountID = account.Int64
	inv.InitialAmount = core.FromCents(initial)
	inv.CurrentAmount = core.FromCents(current)
	inv.TargetAmount = core.FromCents(target.Int64)
	inv.MaturityTermMonths = int(term.Int64)
	if rate.Valid {
		if inv.ExpectedReturnRate, err = decimal.NewFromString(rate.String); err != nil {
			return inv, fmt.Errorf("parse return rate %q: %w", rate.String, err)
		}
	}
	inv.CreatedAt, inv.UpdatedAt = created.Time, updated.Time
	return inv, nil
}

func (q *Queries) InsertInvestment(ctx context.Context, inv core.Investment) (core.Investment, error) {
	now := nowText()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO investments (user_id, type, name, account_id, initial_cents, current_cents, target_cents,
			policy_number, institution, expected_return_rate, maturity_term_months, maturity_date, start_date,
			deadline, status, notes, last_return_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.UserID, inv.Type, inv.Name, nullID(inv.AccountID), core.Cents(inv.InitialAmount), core.Cents(inv.CurrentAmount),
		nullCents(inv.TargetAmount), inv.PolicyNumber, inv.Institution, nullRate(inv.ExpectedReturnRate),
		nullInt(inv.MaturityTermMonths), inv.MaturityDate, inv.StartDate, inv.Deadline, inv.Status, inv.Notes,
		inv.LastReturnDate, now, now)
	if err != nil {
		return inv, fmt.Errorf("insert investment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return inv, fmt.Errorf("investment id: %w", err)
	}
	return q.GetInvestment(ctx, inv.UserID, id)
}

func (q *Queries) GetInvestment(ctx context.Context, userID, id int64) (core.Investment, error) {
	inv, err := scanInvestment(q.db.QueryRowContext(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return inv, core.ErrInvestmentNotFound
	}
	if err != nil {
		return inv, fmt.Errorf("get investment %d: %w", id, err)
	}
	return inv, nil
}

func (q *Queries) UpdateInvestment(ctx context.Context, inv core.Investment) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE investments SET name = ?, account_id = ?, current_cents = ?, target_cents = ?, policy_number = ?,
			institution = ?, expected_return_rate = ?, maturity_term_months = ?, maturity_date = ?, deadline = ?,
			status = ?, notes = ?, last_return_date = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		inv.Name, nullID(inv.AccountID), core.Cents(inv.CurrentAmount), nullCents(inv.TargetAmount), inv.PolicyNumber,
		inv.Institution, nullRate(inv.ExpectedReturnRate), nullInt(inv.MaturityTermMonths), inv.MaturityDate, inv.Deadline,
		inv.Status, inv.Notes, inv.LastReturnDate, nowText(), inv.ID, inv.UserID)
	if err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	return affected(res, core.ErrInvestmentNotFound)
}

func (q *Queries) DeleteInvestment(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM investments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete investment: %w", err)
	}
	return affected(res, core.ErrInvestmentNotFound)
}

// InvestmentFilter narrows ListInvestments. Zero values match everything.
type InvestmentFilter struct {
	Type   core.InvestmentType
	Status core.InvestmentStatus
}

func (q *Queries) ListInvestments(ctx context.Context, userID int64, f InvestmentFilter) ([]core.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = ?`
	args := []any{userID}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	return q.listInvestments(ctx, query+` ORDER BY id`, args...)
}

// ListActiveInsurance returns active insurance policies of every user, the
// input of the monthly return batch.
func (q *Queries) ListActiveInsurance(ctx context.Context) ([]core.Investment, error) {
	return q.listInvestments(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE type = 'insurance' AND status = 'active' ORDER BY id`)
}

func (q *Queries) listInvestments(ctx context.Context, query string, args ...any) ([]core.Investment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []core.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (q *Queries) InsertInvestmentTransaction(ctx context.Context, m core.InvestmentTransaction) (core.InvestmentTransaction, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO investment_transactions (investment_id, type, amount_cents, date, account_id, transaction_id, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.InvestmentID, m.Type, core.Cents(m.Amount), m.Date, nullID(m.AccountID), nullID(m.TransactionID), m.Notes, nowText())
	if err != nil {
		return m, fmt.Errorf("insert investment movement: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return m, fmt.Errorf("investment movement id: %w", err)
	}
	return m, nil
}

// ListInvestmentTransactions returns an investment's movements, newest first.
func (q *Queries) ListInvestmentTransactions(ctx context.Context, investmentID int64) ([]core.InvestmentTransaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, investment_id, type, amount_cents, date, account_id, transaction_id, notes, created_at
		 FROM investment_transactions WHERE investment_id = ? ORDER BY date DESC, id DESC`, investmentID)
	if err != nil {
		return nil, fmt.Errorf("list investment movements: %w", err)
	}
	defer rows.Close()

	var out []core.InvestmentTransaction
	for rows.Next() {
		var (
			m           core.InvestmentTransaction
			account, tx sql.NullInt64
			cents       int64
			created     timestamp
		)
		if err := rows.Scan(&m.ID, &m.InvestmentID, &m.Type, &cents, &m.Date, &account, &tx, &m.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan investment movement: %w", err)
		}
		m.Amount = core.FromCents(cents)
		m.AccountID, m.TransactionID = account.Int64, tx.Int64
		m.CreatedAt = created.Time
		out = append(out, m)
	}
	return out, rows.Err()
}
