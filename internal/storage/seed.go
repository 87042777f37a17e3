package storage

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"budget/internal/core"
)

//go:embed default_categories.yaml
var defaultCategoriesYAML []byte

// CategoryDefaults is the embedded catalogue of global categories.
type CategoryDefaults struct {
	Categories []core.Category `yaml:"categories"`
}

func LoadCategoryDefaults() (CategoryDefaults, error) {
	var d CategoryDefaults
	if err := yaml.Unmarshal(defaultCategoriesYAML, &d); err != nil {
		return d, fmt.Errorf("parse default categories: %w", err)
	}
	for i, c := range d.Categories {
		if err := c.Validate(); err != nil {
			return d, fmt.Errorf("default category %d (%s): %w", i, c.Name, err)
		}
	}
	return d, nil
}

// seedCategories inserts the global defaults into an empty catalogue.
func (r *SQLiteRepository) seedCategories(ctx context.Context) error {
	n, err := r.queries.CountGlobalCategories(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	defaults, err := LoadCategoryDefaults()
	if err != nil {
		return err
	}
	return r.WithinTx(ctx, nil, func(q *Queries) error {
		for _, c := range defaults.Categories {
			c.UserID = 0
			if _, err := q.InsertCategory(ctx, c); err != nil {
				return err
			}
		}
		slog.InfoContext(ctx, "Seeded default categories", "count", len(defaults.Categories))
		return nil
	})
}
