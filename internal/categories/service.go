// Package categories manages the spending categories of a business,
// including their user-defined display order.
package categories

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type Category struct {
	ID           string           `json:"id"`
	BusinessID   string           `json:"business_id"`
	Name         string           `json:"name"`
	DisplayOrder int64            `json:"display_order"`
	SyncStatus   enums.SyncStatus `json:"sync_status"`
	CreatedAt    string           `json:"created_at"`
	UpdatedAt    string           `json:"updated_at"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type Selection interface {
	CurrentBusinessID(ctx context.Context) (string, error)
}

type Service interface {
	Create(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	Get(ctx context.Context, categoryID string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Rename(ctx context.Context, categoryID, name string) (*Category, error)
	// Reorder persists the given ordering for the current business's
	// categories in one transaction. Every category of the business must
	// appear exactly once.
	Reorder(ctx context.Context, orderedIDs []string) error
	// Delete removes the category permanently. It fails while any entry
	// still references it; the row stays queryable after a refused delete.
	Delete(ctx context.Context, categoryID string) error
}

type service struct {
	store     store.Store
	selection Selection
	log       *logger.Logger
	validate  *validator.Validate
}

func NewService(st store.Store, selection Selection, log *logger.Logger) Service {
	return &service{store: st, selection: selection, log: log, validate: validator.New()}
}

func (s *service) Create(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid category")
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.listRows(ctx, businessID)
	if err != nil {
		return nil, err
	}
	now := store.Now()
	row := store.Row{
		"id":            store.GenerateID(),
		"business_id":   businessID,
		"name":          strings.TrimSpace(req.Name),
		"display_order": len(existing),
		"sync_status":   enums.SyncStatusPending.String(),
		"created_at":    now,
		"updated_at":    now,
	}
	if _, err := s.store.Execute(ctx, store.Insert(store.TableCategories, row)); err != nil {
		return nil, err
	}
	return mapCategory(row), nil
}

func (s *service) Get(ctx context.Context, categoryID string) (*Category, error) {
	row, err := s.row(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return mapCategory(row), nil
}

func (s *service) List(ctx context.Context) ([]Category, error) {
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.listRows(ctx, businessID)
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mapCategory(row))
	}
	return out, nil
}

func (s *service) Rename(ctx context.Context, categoryID, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.CodeValidation, "category name is required")
	}
	if _, err := s.row(ctx, categoryID); err != nil {
		return nil, err
	}
	_, err := s.store.Execute(ctx, store.Update(store.TableCategories, store.Row{
		"name":        name,
		"sync_status": enums.SyncStatusPending.String(),
		"updated_at":  store.Now(),
	}, store.Eq("id", categoryID)))
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, categoryID)
}

func (s *service) Reorder(ctx context.Context, orderedIDs []string) error {
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return err
	}
	rows, err := s.listRows(ctx, businessID)
	if err != nil {
		return err
	}
	if len(orderedIDs) != len(rows) {
		return errors.New(errors.CodeValidation, "ordering must cover every category exactly once")
	}
	known := map[string]bool{}
	for _, row := range rows {
		known[row.String("id")] = true
	}

	now := store.Now()
	muts := make([]store.Mutation, 0, len(orderedIDs))
	seen := map[string]bool{}
	for position, id := range orderedIDs {
		if !known[id] || seen[id] {
			return errors.New(errors.CodeValidation, "ordering must cover every category exactly once")
		}
		seen[id] = true
		muts = append(muts, store.Update(store.TableCategories, store.Row{
			"display_order": position,
			"sync_status":   enums.SyncStatusPending.String(),
			"updated_at":    now,
		}, store.Eq("id", id)))
	}
	if err := s.store.RunTransaction(ctx, muts); err != nil {
		return err
	}
	s.log.Info(s.log.WithBusinessID(ctx, businessID), "categories reordered")
	return nil
}

func (s *service) Delete(ctx context.Context, categoryID string) error {
	if _, err := s.row(ctx, categoryID); err != nil {
		return err
	}
	refs, err := s.store.Query(ctx, store.Query{
		Table: store.TableEntries,
		Where: []store.Cond{store.Eq("category_id", categoryID)},
		Limit: 1,
	})
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return errors.New(errors.CodeValidation, "category is referenced by entries")
	}
	if _, err := s.store.Execute(ctx, store.Delete(store.TableCategories, store.Eq("id", categoryID))); err != nil {
		return err
	}
	s.log.Info(s.log.WithField(ctx, "category_id", categoryID), "category deleted")
	return nil
}

func (s *service) listRows(ctx context.Context, businessID string) ([]store.Row, error) {
	return s.store.Query(ctx, store.Query{
		Table:   store.TableCategories,
		Where:   []store.Cond{store.Eq("business_id", businessID)},
		OrderBy: "display_order",
	})
}

// row loads a category only within the currently selected business.
func (s *service) row(ctx context.Context, categoryID string) (store.Row, error) {
	if categoryID == "" {
		return nil, errors.New(errors.CodeValidation, "category id is required")
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableCategories,
		Where: []store.Cond{store.Eq("id", categoryID), store.Eq("business_id", businessID)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "category not found")
	}
	return rows[0], nil
}

func mapCategory(row store.Row) *Category {
	return &Category{
		ID:           row.String("id"),
		BusinessID:   row.String("business_id"),
		Name:         row.String("name"),
		DisplayOrder: row.Int("display_order"),
		SyncStatus:   enums.SyncStatus(row.String("sync_status")),
		CreatedAt:    row.String("created_at"),
		UpdatedAt:    row.String("updated_at"),
	}
}
