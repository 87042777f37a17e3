package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

const goalColumns = `id, user_id, account_id, name, target_cents, current_cents, deadline, status, created_at`

func scanGoal(row rowScanner) (core.Goal, error) {
	var (
		g               core.Goal
		account         sql.NullInt64
		target, current int64
		created         timestamp
	)
	if err := row.Scan(&g.ID, &g.UserID, &account, &g.Name, &target, &current, &g.Deadline, &g.Status, &created); err != nil {
		return g, err
	}
	g.AccountID = account.Int64
	g.Target, g.Current = core.FromCents(target), core.FromCents(current)
	g.CreatedAt = created.Time
	return g, nil
}

func (q *Queries) InsertGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, account_id, name, target_cents, current_cents, deadline, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, nullID(g.AccountID), g.Name, core.Cents(g.Target), core.Cents(g.Current), g.Deadline, g.Status, nowText())
	if err != nil {
		return g, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return g, fmt.Errorf("goal id: %w", err)
	}
	return q.GetGoal(ctx, g.UserID, id)
}

func (q *Queries) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	g, err := scanGoal(q.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return g, core.ErrGoalNotFound
	}
	if err != nil {
		return g, fmt.Errorf("get goal %d: %w", id, err)
	}
	return g, nil
}

func (q *Queries) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE goals SET account_id = ?, name = ?, target_cents = ?, current_cents = ?, deadline = ?, status = ?
		 WHERE id = ? AND user_id = ?`,
		nullID(g.AccountID), g.Name, core.Cents(g.Target), core.Cents(g.Current), g.Deadline, g.Status, g.ID, g.UserID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return affected(res, core.ErrGoalNotFound)
}

func (q *Queries) DeleteGoal(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return affected(res, core.ErrGoalNotFound)
}

// ListGoals returns the user's goals, optionally of one status.
func (q *Queries) ListGoals(ctx context.Context, userID int64, status core.GoalStatus) ([]core.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
