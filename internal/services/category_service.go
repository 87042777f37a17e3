package services

import (
	"context"
	"fmt"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/storage"
)

const (
	categoryCacheSize = 256
	categoryCacheTTL  = 10 * time.Minute
)

// CategoryService serves the category catalogue: global defaults plus the
// user's own. Listings are cached per user and type and dropped on any
// change by that user.
type CategoryService struct {
	store Store
	cache cache.Cache[[]core.Category]
}

func NewCategoryService(store Store, c cache.Cache[[]core.Category]) *CategoryService {
	if c == nil {
		c = cache.NewLRUCache[[]core.Category](categoryCacheSize, categoryCacheTTL)
	}
	return &CategoryService{store: store, cache: c}
}

func (s *CategoryService) ListCategories(ctx context.Context, userID int64, typ core.TxType) ([]core.Category, error) {
	key := categoryKey(userID, typ)
	if cats, ok := s.cache.Get(key); ok {
		return cats, nil
	}
	cats, err := s.store.Queries().ListCategories(ctx, userID, typ)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, cats)
	return cats, nil
}

func (s *CategoryService) GetCategory(ctx context.Context, userID, id int64) (core.Category, error) {
	return s.store.Queries().GetCategory(ctx, userID, id)
}

func (s *CategoryService) CreateCategory(ctx context.Context, userID int64, c core.Category) (core.Category, error) {
	c.UserID = userID
	if err := c.Validate(); err != nil {
		return c, err
	}
	created, err := s.store.Queries().InsertCategory(ctx, c)
	if err != nil {
		return c, err
	}
	s.invalidate(userID)
	return created, nil
}

// UpdateCategory edits one of the user's categories. Global defaults are not
// the user's and report not found.
func (s *CategoryService) UpdateCategory(ctx context.Context, userID, id int64, c core.Category) (core.Category, error) {
	c.ID, c.UserID = id, userID
	if err := c.Validate(); err != nil {
		return c, err
	}
	if err := s.store.Queries().UpdateCategory(ctx, c); err != nil {
		return c, err
	}
	s.invalidate(userID)
	return c, nil
}

// DeleteCategory removes one of the user's categories. Transactions keep
// their rows and become uncategorized.
func (s *CategoryService) DeleteCategory(ctx context.Context, userID, id int64) error {
	if err := s.store.Queries().DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *CategoryService) invalidate(userID int64) {
	s.cache.DeletePrefix(fmt.Sprintf("categories:%d:", userID))
}

func categoryKey(userID int64, typ core.TxType) string {
	return fmt.Sprintf("categories:%d:%s", userID, typ)
}

var _ cache.Cache[[]core.Category] = (*cache.LRUCache[[]core.Category])(nil)

var _ Store = (*storage.SQLiteRepository)(nil)
