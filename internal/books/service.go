// Package books manages the cash books inside the currently selected
// business. Every book belongs to exactly one business; entries hang off a
// book.
package books

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// Book is a ledger within a business.
type Book struct {
	ID         string           `json:"id"`
	BusinessID string           `json:"business_id"`
	Name       string           `json:"name"`
	CreatedBy  string           `json:"created_by"`
	Deleted    bool             `json:"is_deleted"`
	SyncStatus enums.SyncStatus `json:"sync_status"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type CreateBookRequest struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

type Selection interface {
	CurrentBusinessID(ctx context.Context) (string, error)
	ClearBookIf(ctx context.Context, bookID string) error
}

type Service interface {
	Create(ctx context.Context, req CreateBookRequest) (*Book, error)
	Get(ctx context.Context, bookID string) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	Rename(ctx context.Context, bookID, name string) (*Book, error)
	Delete(ctx context.Context, bookID string) error
	// Clone copies a book and all its entries into a new book in one
	// transaction. Cloned records get fresh ids, the acting user as
	// creator, and start out pending so they sync as new records.
	Clone(ctx context.Context, bookID, name string) (*Book, error)
}

type service struct {
	store     store.Store
	session   Session
	selection Selection
	log       *logger.Logger
	validate  *validator.Validate
}

func NewService(st store.Store, session Session, selection Selection, log *logger.Logger) Service {
	return &service{
		store:     st,
		session:   session,
		selection: selection,
		log:       log,
		validate:  validator.New(),
	}
}

func (s *service) Create(ctx context.Context, req CreateBookRequest) (*Book, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid book")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	now := store.Now()
	row := store.Row{
		"id":          store.GenerateID(),
		"business_id": businessID,
		"name":        strings.TrimSpace(req.Name),
		"created_by":  userID,
		"is_deleted":  0,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	if _, err := s.store.Execute(ctx, store.Insert(store.TableBooks, row)); err != nil {
		return nil, err
	}
	book := mapBook(row)
	s.log.Info(s.log.WithBookID(ctx, book.ID), "book created")
	return book, nil
}

func (s *service) Get(ctx context.Context, bookID string) (*Book, error) {
	row, err := s.row(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return mapBook(row), nil
}

func (s *service) List(ctx context.Context) ([]Book, error) {
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table:   store.TableBooks,
		Where:   []store.Cond{store.Eq("business_id", businessID), store.Eq("is_deleted", 0)},
		OrderBy: "updated_at",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Book, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mapBook(row))
	}
	return out, nil
}

func (s *service) Rename(ctx context.Context, bookID, name string) (*Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.CodeValidation, "book name is required")
	}
	if _, err := s.row(ctx, bookID); err != nil {
		return nil, err
	}
	_, err := s.store.Execute(ctx, store.Update(store.TableBooks, store.Row{
		"name":        name,
		"sync_status": enums.SyncStatusPending.String(),
		"updated_at":  store.Now(),
	}, store.Eq("id", bookID)))
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, bookID)
}

func (s *service) Delete(ctx context.Context, bookID string) error {
	if _, err := s.row(ctx, bookID); err != nil {
		return err
	}
	_, err := s.store.Execute(ctx, store.Update(store.TableBooks, store.Row{
		"is_deleted":  1,
		"sync_status": enums.SyncStatusPending.String(),
		"updated_at":  store.Now(),
	}, store.Eq("id", bookID)))
	if err != nil {
		return err
	}
	if err := s.selection.ClearBookIf(ctx, bookID); err != nil {
		return err
	}
	s.log.Info(s.log.WithBookID(ctx, bookID), "book deleted")
	return nil
}

func (s *service) Clone(ctx context.Context, bookID, name string) (*Book, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New(errors.CodeValidation, "book name is required")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	source, err := s.row(ctx, bookID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.Query(ctx, store.Query{
		Table: store.TableEntries,
		Where: []store.Cond{store.Eq("book_id", bookID)},
	})
	if err != nil {
		return nil, err
	}

	now := store.Now()
	newBook := store.Row{
		"id":          store.GenerateID(),
		"business_id": source.String("business_id"),
		"name":        name,
		"created_by":  userID,
		"is_deleted":  0,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	muts := make([]store.Mutation, 0, len(entries)+1)
	muts = append(muts, store.Insert(store.TableBooks, newBook))
	for _, entry := range entries {
		clone := entry.Clone()
		clone["id"] = store.GenerateID()
		clone["book_id"] = newBook.String("id")
		clone["created_by"] = userID
		clone["sync_status"] = enums.SyncStatusPending.String()
		clone["created_at"] = now
		clone["updated_at"] = now
		muts = append(muts, store.Insert(store.TableEntries, clone))
	}
	if err := s.store.RunTransaction(ctx, muts); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"book_id": bookID, "clone_id": newBook.String("id"), "entries": len(entries),
	}), "book cloned")
	return mapBook(newBook), nil
}

// row loads a live book only when it belongs to the currently selected
// business. Books of other businesses read as not found.
func (s *service) row(ctx context.Context, bookID string) (store.Row, error) {
	if bookID == "" {
		return nil, errors.New(errors.CodeValidation, "book id is required")
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableBooks,
		Where: []store.Cond{
			store.Eq("id", bookID),
			store.Eq("business_id", businessID),
			store.Eq("is_deleted", 0),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "book not found")
	}
	return rows[0], nil
}

func mapBook(row store.Row) *Book {
	return &Book{
		ID:         row.String("id"),
		BusinessID: row.String("business_id"),
		Name:       row.String("name"),
		CreatedBy:  row.String("created_by"),
		Deleted:    row.Bool("is_deleted"),
		SyncStatus: enums.SyncStatus(row.String("sync_status")),
		CreatedAt:  row.String("created_at"),
		UpdatedAt:  row.String("updated_at"),
	}
}
