package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// SumByType totals the user's transactions of one type dated in [from, to].
func (q *Queries) SumByType(ctx context.Context, userID int64, typ core.TxType, from, to core.Date) (decimal.Decimal, error) {
	sum, err := sumCents(ctx, q.db,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND type = ? AND date >= ? AND date <= ?`, userID, typ, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s: %w", typ, err)
	}
	return sum, nil
}

// CategorySpent totals one category's expenses dated in [from, to].
func (q *Queries) CategorySpent(ctx context.Context, userID, categoryID int64, from, to core.Date) (decimal.Decimal, error) {
	sum, err := sumCents(ctx, q.db,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE user_id = ? AND category_id = ? AND type = 'Expense' AND date >= ? AND date <= ?`,
		userID, categoryID, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("category %d spent: %w", categoryID, err)
	}
	return sum, nil
}

// MonthlyTotals returns income and expense per YYYY-MM for months that have
// transactions in [from, to]. Empty months are absent.
func (q *Queries) MonthlyTotals(ctx context.Context, userID int64, from, to core.Date) (map[string]core.MonthTotals, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month,
			COALESCE(SUM(CASE WHEN type = 'Income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN type = 'Expense' THEN amount_cents END), 0)
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?
		GROUP BY month`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.MonthTotals)
	for rows.Next() {
		var (
			month           string
			income, expense int64
		)
		if err := rows.Scan(&month, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		m := core.MonthTotals{Month: month, Income: core.FromCents(income), Expense: core.FromCents(expense)}
		m.Net = m.Income.Sub(m.Expense)
		out[month] = m
	}
	return out, rows.Err()
}

// CategoryMonthlySpending returns one category's expense per YYYY-MM in
// [from, to]. Months without spending are absent.
func (q *Queries) CategoryMonthlySpending(ctx context.Context, userID, categoryID int64, from, to core.Date) (map[string]decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7) AS month, SUM(amount_cents)
		FROM transactions
		WHERE user_id = ? AND category_id = ? AND type = 'Expense' AND date >= ? AND date <= ?
		GROUP BY month`, userID, categoryID, from, to)
	if err != nil {
		return nil, fmt.Errorf("category monthly spending: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			month string
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return nil, fmt.Errorf("scan category spending: %w", err)
		}
		out[month] = core.FromCents(cents)
	}
	return out, rows.Err()
}

// AmountsByCategory groups the user's transactions of one type in [from, to]
// by category. Uncategorized rows land in the UncategorizedID bucket.
// Percentages are left to the caller.
func (q *Queries) AmountsByCategory(ctx context.Context, userID int64, typ core.TxType, from, to core.Date) ([]core.CategoryAmount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT COALESCE(c.id, 0), COALESCE(c.name, ?), SUM(t.amount_cents), COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.type = ? AND t.date >= ? AND t.date <= ?
		GROUP BY COALESCE(c.id, 0)
		ORDER BY SUM(t.amount_cents) DESC`, core.UncategorizedName, userID, typ, from, to)
	if err != nil {
		return nil, fmt.Errorf("amounts by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			ca    core.CategoryAmount
			cents int64
		)
		if err := rows.Scan(&ca.CategoryID, &ca.Name, &cents, &ca.Count); err != nil {
			return nil, fmt.Errorf("scan category amount: %w", err)
		}
		ca.Amount = core.FromCents(cents)
		out = append(out, ca)
	}
	return out, rows.Err()
}
