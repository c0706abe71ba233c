package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"saldi/internal/core"
)

// CategoryStore is the category persistence used by CategoryService.
type CategoryStore interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	CreateCategory(ctx context.Context, c core.Category) error
	GetCategory(ctx context.Context, id string) (core.Category, error)
	FindCategoryByName(ctx context.Context, accountID, name string) (core.Category, bool, error)
	ListCategories(ctx context.Context, accountID string) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id string) error
	CountCategoryRecords(ctx context.Context, categoryID string) (int64, error)
}

type CategoryService struct {
	store CategoryStore
	newID func() string
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store, newID: uuid.NewString}
}

func (s *CategoryService) Create(ctx context.Context, accountID, name string) (core.Category, error) {
	c := core.Category{ID: s.newID(), AccountID: accountID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return core.Category{}, err
	}
	if err := s.ensureNameFree(ctx, c); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

// List returns the categories of accountID, or all of them when it is empty.
func (s *CategoryService) List(ctx context.Context, accountID string) ([]core.Category, error) {
	if accountID != "" {
		if _, err := s.store.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return s.store.ListCategories(ctx, accountID)
}

// Update renames a category or moves it to another account. A category that
// tags records cannot change account.
func (s *CategoryService) Update(ctx context.Context, id, accountID, name string) (core.Category, error) {
	current, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	c := core.Category{ID: id, AccountID: accountID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if c.AccountID != current.AccountID {
		if _, err := s.store.GetAccount(ctx, c.AccountID); err != nil {
			return core.Category{}, err
		}
		n, err := s.store.CountCategoryRecords(ctx, id)
		if err != nil {
			return core.Category{}, fmt.Errorf("count records: %w", err)
		}
		if n > 0 {
			return core.Category{}, fmt.Errorf("category tags %d records and cannot change account: %w", n, core.ErrConflict)
		}
	}
	if err := s.ensureNameFree(ctx, c); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return err
	}
	n, err := s.store.CountCategoryRecords(ctx, id)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("category tags %d records: %w", n, core.ErrConflict)
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, c core.Category) error {
	existing, ok, err := s.store.FindCategoryByName(ctx, c.AccountID, c.Name)
	if err != nil {
		return fmt.Errorf("find category by name: %w", err)
	}
	if ok && existing.ID != c.ID {
		return fmt.Errorf("category name %q already in use: %w", c.Name, core.ErrConflict)
	}
	return nil
}
