// Package parties manages the customers and suppliers entries can be
// attributed to.
package parties

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type Party struct {
	ID         string           `json:"id"`
	BusinessID string           `json:"business_id"`
	Name       string           `json:"name"`
	Phone      string           `json:"phone,omitempty"`
	Type       string           `json:"type,omitempty"`
	SyncStatus enums.SyncStatus `json:"sync_status"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type CreatePartyRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=120"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
	Type  string `json:"type" validate:"omitempty,oneof=customer supplier"`
}

type UpdatePartyRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Type  *string `json:"type,omitempty" validate:"omitempty,oneof=customer supplier"`
}

type Selection interface {
	CurrentBusinessID(ctx context.Context) (string, error)
}

type Service interface {
	Create(ctx context.Context, req CreatePartyRequest) (*Party, error)
	Get(ctx context.Context, partyID string) (*Party, error)
	List(ctx context.Context) ([]Party, error)
	Search(ctx context.Context, term string) ([]Party, error)
	Update(ctx context.Context, partyID string, req UpdatePartyRequest) (*Party, error)
	// Delete removes the party permanently. It fails while any entry still
	// references the party; the row stays queryable after a refused delete.
	Delete(ctx context.Context, partyID string) error
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

func (s *service) Create(ctx context.Context, req CreatePartyRequest) (*Party, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid party")
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
		"phone":       strings.TrimSpace(req.Phone),
		"type":        req.Type,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	if _, err := s.store.Execute(ctx, store.Insert(store.TableParties, row)); err != nil {
		return nil, err
	}
	return mapParty(row), nil
}

func (s *service) Get(ctx context.Context, partyID string) (*Party, error) {
	row, err := s.row(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return mapParty(row), nil
}

func (s *service) List(ctx context.Context) ([]Party, error) {
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table:   store.TableParties,
		Where:   []store.Cond{store.Eq("business_id", businessID)},
		OrderBy: "name",
	})
	if err != nil {
		return nil, err
	}
	return mapParties(rows), nil
}

func (s *service) Search(ctx context.Context, term string) ([]Party, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.List(ctx)
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table:   store.TableParties,
		Where:   []store.Cond{store.Eq("business_id", businessID)},
		OrAny:   []store.Cond{store.Like("name", term), store.Like("phone", term)},
		OrderBy: "name",
	})
	if err != nil {
		return nil, err
	}
	return mapParties(rows), nil
}

func (s *service) Update(ctx context.Context, partyID string, req UpdatePartyRequest) (*Party, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid party update")
	}
	if _, err := s.row(ctx, partyID); err != nil {
		return nil, err
	}
	values := store.Row{}
	if req.Name != nil {
		values["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		values["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Type != nil {
		values["type"] = *req.Type
	}
	if len(values) == 0 {
		return nil, errors.New(errors.CodeValidation, "no party fields to update")
	}
	values["sync_status"] = enums.SyncStatusPending.String()
	values["updated_at"] = store.Now()
	if _, err := s.store.Execute(ctx, store.Update(store.TableParties, values, store.Eq("id", partyID))); err != nil {
		return nil, err
	}
	return s.Get(ctx, partyID)
}

func (s *service) Delete(ctx context.Context, partyID string) error {
	if _, err := s.row(ctx, partyID); err != nil {
		return err
	}
	refs, err := s.store.Query(ctx, store.Query{
		Table: store.TableEntries,
		Where: []store.Cond{store.Eq("party_id", partyID)},
		Limit: 1,
	})
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return errors.New(errors.CodeValidation, "party is referenced by entries")
	}
	if _, err := s.store.Execute(ctx, store.Delete(store.TableParties, store.Eq("id", partyID))); err != nil {
		return err
	}
	s.log.Info(s.log.WithField(ctx, "party_id", partyID), "party deleted")
	return nil
}

// row loads a party only within the currently selected business.
func (s *service) row(ctx context.Context, partyID string) (store.Row, error) {
	if partyID == "" {
		return nil, errors.New(errors.CodeValidation, "party id is required")
	}
	businessID, err := s.selection.CurrentBusinessID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableParties,
		Where: []store.Cond{store.Eq("id", partyID), store.Eq("business_id", businessID)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "party not found")
	}
	return rows[0], nil
}

func mapParties(rows []store.Row) []Party {
	out := make([]Party, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mapParty(row))
	}
	return out
}

func mapParty(row store.Row) *Party {
	return &Party{
		ID:         row.String("id"),
		BusinessID: row.String("business_id"),
		Name:       row.String("name"),
		Phone:      row.String("phone"),
		Type:       row.String("type"),
		SyncStatus: enums.SyncStatus(row.String("sync_status")),
		CreatedAt:  row.String("created_at"),
		UpdatedAt:  row.String("updated_at"),
	}
}
