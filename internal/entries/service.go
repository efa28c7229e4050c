// Package entries implements the ledger itself: cash movements, their
// filtered listing and summary, and the per-entry activity trail.
package entries

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

type Selection interface {
	CurrentBusinessID(ctx context.Context) (string, error)
	CurrentBookID(ctx context.Context) (string, error)
}

type Service interface {
	Create(ctx context.Context, req CreateEntryRequest) (*Entry, error)
	Get(ctx context.Context, entryID string) (*Entry, error)
	// List returns the current book's entries matching the filters, newest
	// date_time first.
	List(ctx context.Context, filters ListFilters) ([]Entry, error)
	// Summarize aggregates exactly the entries List would return for the
	// same filters.
	Summarize(ctx context.Context, filters ListFilters) (*Summary, error)
	Update(ctx context.Context, entryID string, req UpdateEntryRequest) (*Entry, error)
	// Delete removes the entry and its activity trail in one transaction.
	Delete(ctx context.Context, entryID string) error
	ActivityLogs(ctx context.Context, entryID string) ([]ActivityLog, error)
}

type service struct {
	store     store.Store
	session   Session
	selection Selection
	log       *logger.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(st store.Store, session Session, selection Selection, log *logger.Logger) Service {
	return &service{
		store:     st,
		session:   session,
		selection: selection,
		log:       log,
		validate:  validator.New(),
		now:       time.Now,
	}
}

func (s *service) Create(ctx context.Context, req CreateEntryRequest) (*Entry, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid entry")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	bookID, err := s.selection.CurrentBookID(ctx)
	if err != nil {
		return nil, err
	}

	dateTime := req.DateTime
	if dateTime == "" {
		dateTime = store.FormatTime(s.now())
	} else if _, err := store.ParseTime(dateTime); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid date_time")
	}
	paymentMode := req.PaymentMode
	if paymentMode == "" {
		paymentMode = enums.PaymentModeCash.String()
	}

	now := store.Now()
	row := store.Row{
		"id":              store.GenerateID(),
		"book_id":         bookID,
		"business_id":     businessID,
		"type":            req.Type,
		"amount":          req.Amount,
		"remark":          strings.TrimSpace(req.Remark),
		"party_id":        emptyToNil(req.PartyID),
		"category_id":     emptyToNil(req.CategoryID),
		"payment_mode":    paymentMode,
		"date_time":       dateTime,
		"attachment_path": emptyToNil(req.AttachmentPath),
		"created_by":      userID,
		"sync_status":     enums.SyncStatusPending.String(),
		"created_at":      now,
		"updated_at":      now,
	}
	err = s.store.RunTransaction(ctx, []store.Mutation{
		store.Insert(store.TableEntries, row),
		store.Insert(store.TableActivityLog,
			s.logRow(row, userID, actionCreated, "", "", formatAmount(req.Amount))),
	})
	if err != nil {
		return nil, err
	}
	entry := mapEntry(row)
	s.log.Info(s.log.WithFields(ctx, map[string]any{"entry_id": entry.ID, "book_id": bookID}), "entry created")
	return entry, nil
}

func (s *service) Get(ctx context.Context, entryID string) (*Entry, error) {
	row, err := s.row(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return mapEntry(row), nil
}

func (s *service) List(ctx context.Context, filters ListFilters) ([]Entry, error) {
	rows, err := s.filteredRows(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mapEntry(row))
	}
	return out, nil
}

func (s *service) Summarize(ctx context.Context, filters ListFilters) (*Summary, error) {
	rows, err := s.filteredRows(ctx, filters)
	if err != nil {
		return nil, err
	}
	summary := &Summary{EntryCount: len(rows)}
	for _, row := range rows {
		if row.String("type") == enums.EntryTypeCashIn.String() {
			summary.TotalCashIn += row.Float("amount")
		} else {
			summary.TotalCashOut += row.Float("amount")
		}
	}
	summary.NetBalance = summary.TotalCashIn - summary.TotalCashOut
	return summary, nil
}

func (s *service) Update(ctx context.Context, entryID string, req UpdateEntryRequest) (*Entry, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid entry update")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	before, err := s.row(ctx, entryID)
	if err != nil {
		return nil, err
	}

	values := store.Row{}
	if req.Type != nil {
		values["type"] = *req.Type
	}
	if req.Amount != nil {
		values["amount"] = *req.Amount
	}
	if req.Remark != nil {
		values["remark"] = strings.TrimSpace(*req.Remark)
	}
	if req.PartyID != nil {
		values["party_id"] = emptyToNil(*req.PartyID)
	}
	if req.CategoryID != nil {
		values["category_id"] = emptyToNil(*req.CategoryID)
	}
	if req.PaymentMode != nil {
		values["payment_mode"] = *req.PaymentMode
	}
	if req.DateTime != nil {
		if _, err := store.ParseTime(*req.DateTime); err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "invalid date_time")
		}
		values["date_time"] = *req.DateTime
	}
	if req.AttachmentPath != nil {
		values["attachment_path"] = emptyToNil(*req.AttachmentPath)
	}
	if len(values) == 0 {
		return nil, errors.New(errors.CodeValidation, "no entry fields to update")
	}

	after := before.Clone()
	changed := false
	for k, v := range values {
		if !valueUnchanged(before[k], v) {
			changed = true
		}
		after[k] = v
	}
	if !changed {
		// Nothing actually changed, skip the write entirely.
		return mapEntry(before), nil
	}
	logs := s.diffLogs(ctx, before, after, userID)

	values["sync_status"] = enums.SyncStatusPending.String()
	values["updated_at"] = store.Now()
	muts := []store.Mutation{
		store.Update(store.TableEntries, values, store.Eq("id", entryID)),
	}
	for _, logRow := range logs {
		muts = append(muts, store.Insert(store.TableActivityLog, logRow))
	}
	if err := s.store.RunTransaction(ctx, muts); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{"entry_id": entryID, "fields": len(logs)}), "entry updated")
	return s.Get(ctx, entryID)
}

func (s *service) Delete(ctx context.Context, entryID string) error {
	if _, err := s.session.CurrentUserID(ctx); err != nil {
		return err
	}
	if _, err := s.row(ctx, entryID); err != nil {
		return err
	}
	err := s.store.RunTransaction(ctx, []store.Mutation{
		store.Delete(store.TableEntries, store.Eq("id", entryID)),
		store.Delete(store.TableActivityLog, store.Eq("entry_id", entryID)),
	})
	if err != nil {
		return err
	}
	s.log.Info(s.log.WithField(ctx, "entry_id", entryID), "entry deleted")
	return nil
}

func (s *service) ActivityLogs(ctx context.Context, entryID string) ([]ActivityLog, error) {
	if _, err := s.row(ctx, entryID); err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table:   store.TableActivityLog,
		Where:   []store.Cond{store.Eq("entry_id", entryID)},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]ActivityLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, ActivityLog{
			ID:         row.String("id"),
			EntryID:    row.String("entry_id"),
			BookID:     row.String("book_id"),
			BusinessID: row.String("business_id"),
			UserID:     row.String("user_id"),
			Action:     row.String("action"),
			Field:      row.String("field"),
			OldValue:   row.String("old_value"),
			NewValue:   row.String("new_value"),
			CreatedAt:  row.String("created_at"),
		})
	}
	return out, nil
}

func (s *service) filteredRows(ctx context.Context, filters ListFilters) ([]store.Row, error) {
	bookID, err := s.selection.CurrentBookID(ctx)
	if err != nil {
		return nil, err
	}
	conds, err := filters.conds(bookID, s.now())
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, store.Query{
		Table:   store.TableEntries,
		Where:   conds,
		OrderBy: "date_time",
		Desc:    true,
	})
}

// row loads an entry only when it belongs to the currently selected book.
// Rows from other books read as not found, never as a cross-tenant leak.
func (s *service) row(ctx context.Context, entryID string) (store.Row, error) {
	if entryID == "" {
		return nil, errors.New(errors.CodeValidation, "entry id is required")
	}
	bookID, err := s.selection.CurrentBookID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableEntries,
		Where: []store.Cond{store.Eq("id", entryID), store.Eq("book_id", bookID)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "entry not found")
	}
	return rows[0], nil
}

func emptyToNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func mapEntry(row store.Row) *Entry {
	return &Entry{
		ID:             row.String("id"),
		BookID:         row.String("book_id"),
		BusinessID:     row.String("business_id"),
		Type:           enums.EntryType(row.String("type")),
		Amount:         row.Float("amount"),
		Remark:         row.String("remark"),
		PartyID:        row.String("party_id"),
		CategoryID:     row.String("category_id"),
		PaymentMode:    enums.PaymentMode(row.String("payment_mode")),
		DateTime:       row.String("date_time"),
		AttachmentPath: row.String("attachment_path"),
		CreatedBy:      row.String("created_by"),
		SyncStatus:     enums.SyncStatus(row.String("sync_status")),
		CreatedAt:      row.String("created_at"),
		UpdatedAt:      row.String("updated_at"),
	}
}
