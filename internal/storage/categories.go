package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c    core.Category
		user sql.NullInt64
	)
	if err := row.Scan(&c.ID, &user, &c.Name, &c.Type, &c.Icon); err != nil {
		return c, err
	}
	c.UserID = user.Int64
	return c, nil
}

func (q *Queries) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, icon) VALUES (?, ?, ?, ?)`,
		nullID(c.UserID), c.Name, c.Type, c.Icon)
	if err != nil {
		return c, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return c, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

// GetCategory returns a category visible to the user: one of theirs or a
// global default.
func (q *Queries) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, icon FROM categories WHERE id = ? AND (user_id = ? OR user_id IS NULL)`,
		id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return c, core.ErrCategoryNotFound
	}
	if err != nil {
		return c, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

// ListCategories returns global and user categories, optionally of one type.
func (q *Queries) ListCategories(ctx context.Context, userID int64, typ core.TxType) ([]core.Category, error) {
	query := `SELECT id, user_id, name, type, icon FROM categories WHERE (user_id = ? OR user_id IS NULL)`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	rows, err := q.db.QueryContext(ctx, query+` ORDER BY type, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
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

// UpdateCategory only touches categories owned by the user; global defaults
// are read-only.
func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Type, c.Icon, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return affected(res, core.ErrCategoryNotFound)
}

func (q *Queries) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return affected(res, core.ErrCategoryNotFound)
}

func (q *Queries) CountGlobalCategories(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count global categories: %w", err)
	}
	return n, nil
}
