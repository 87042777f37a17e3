package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

const budgetColumns = `id, user_id, category_id, amount_cents, period_start, period_end, is_recurring, status, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		cents            int64
		created, updated timestamp
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &cents, &b.PeriodStart, &b.PeriodEnd, &b.IsRecurring, &b.Status, &created, &updated)
	if err != nil {
		return b, err
	}
	b.Amount = core.FromCents(cents)
	b.CreatedAt, b.UpdatedAt = created.Time, updated.Time
	return b, nil
}

func (q *Queries) InsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := nowText()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, amount_cents, period_start, period_end, is_recurring, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.CategoryID, core.Cents(b.Amount), b.PeriodStart, b.PeriodEnd, boolInt(b.IsRecurring), b.Status, now, now)
	if err != nil {
		return b, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return b, fmt.Errorf("budget id: %w", err)
	}
	return q.GetBudget(ctx, b.UserID, id)
}

func (q *Queries) GetBudget(ctx context.Context, userID, id int64) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return b, core.ErrBudgetNotFound
	}
	if err != nil {
		return b, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (q *Queries) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET category_id = ?, amount_cents = ?, period_start = ?, period_end = ?, is_recurring = ?, status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		b.CategoryID, core.Cents(b.Amount), b.PeriodStart, b.PeriodEnd, boolInt(b.IsRecurring), b.Status, nowText(), b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return affected(res, core.ErrBudgetNotFound)
}

func (q *Queries) DeleteBudget(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affected(res, core.ErrBudgetNotFound)
}

// ListBudgets returns the user's budgets. With activeOn set, only Active
// budgets whose period contains that date are returned.
func (q *Queries) ListBudgets(ctx context.Context, userID int64, activeOn core.Date) ([]core.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if !activeOn.IsZero() {
		query += ` AND status = 'Active' AND period_start <= ? AND (period_end IS NULL OR period_end >= ?)`
		args = append(args, activeOn, activeOn)
	}
	return q.listBudgets(ctx, query+` ORDER BY id`, args...)
}

// LatestActiveBudget returns the newest active budget of a category, used as
// the reference line of its spending trend.
func (q *Queries) LatestActiveBudget(ctx context.Context, userID, categoryID int64) (core.Budget, bool, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category_id = ? AND status = 'Active'
		 ORDER BY created_at DESC, id DESC LIMIT 1`, userID, categoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, fmt.Errorf("latest budget of category %d: %w", categoryID, err)
	}
	return b, true, nil
}

func (q *Queries) listBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) InsertBudgetHistory(ctx context.Context, h core.BudgetHistory) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO budget_history (budget_id, previous_amount_cents, new_amount_cents, previous_period_end, new_period_end, change_reason, changed_by, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.BudgetID, core.Cents(h.PreviousAmount), core.Cents(h.NewAmount), h.PreviousPeriodEnd, h.NewPeriodEnd, h.ChangeReason, h.ChangedBy, nowText())
	if err != nil {
		return fmt.Errorf("insert budget history: %w", err)
	}
	return nil
}

func (q *Queries) ListBudgetHistory(ctx context.Context, budgetID int64) ([]core.BudgetHistory, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, budget_id, previous_amount_cents, new_amount_cents, previous_period_end, new_period_end, change_reason, changed_by, changed_at
		 FROM budget_history WHERE budget_id = ? ORDER BY id DESC`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget history: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetHistory
	for rows.Next() {
		var (
			h         core.BudgetHistory
			prev, cur int64
			changed   timestamp
		)
		if err := rows.Scan(&h.ID, &h.BudgetID, &prev, &cur, &h.PreviousPeriodEnd, &h.NewPeriodEnd, &h.ChangeReason, &h.ChangedBy, &changed); err != nil {
			return nil, fmt.Errorf("scan budget history: %w", err)
		}
		h.PreviousAmount, h.NewAmount = core.FromCents(prev), core.FromCents(cur)
		h.ChangedAt = changed.Time
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q *Queries) CountBudgetHistory(ctx context.Context, budgetID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM budget_history WHERE budget_id = ?`, budgetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count budget history: %w", err)
	}
	return n, nil
}

// BudgetedCategories lists the categories that have at least one budget.
func (q *Queries) BudgetedCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.user_id, c.name, c.type, c.icon
		FROM budgets b JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ?
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgeted categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
