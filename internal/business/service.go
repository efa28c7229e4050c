package business

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// Session identifies the acting user.
type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Selection is notified when a business disappears so a stale current
// selection does not linger until the next lazy revalidation.
type Selection interface {
	ClearBusinessIf(ctx context.Context, businessID string) error
}

type Service interface {
	Create(ctx context.Context, req CreateBusinessRequest) (*Business, error)
	Get(ctx context.Context, businessID string) (*Business, error)
	ListForUser(ctx context.Context) ([]Business, error)
	Update(ctx context.Context, businessID string, req UpdateBusinessRequest) (*Business, error)
	Delete(ctx context.Context, businessID string) error

	AddMember(ctx context.Context, req AddMemberRequest) (*TeamMember, error)
	RemoveMember(ctx context.Context, businessID, userID string) error
	UpdateMemberRole(ctx context.Context, req UpdateMemberRoleRequest) (*TeamMember, error)
	ListMembers(ctx context.Context, businessID string) ([]TeamMember, error)
	RoleOf(ctx context.Context, businessID, userID string) (enums.TeamRole, error)
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

func (s *service) Create(ctx context.Context, req CreateBusinessRequest) (*Business, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid business")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	now := store.Now()
	row := store.Row{
		"id":          store.GenerateID(),
		"name":        strings.TrimSpace(req.Name),
		"owner_id":    userID,
		"category":    req.Category,
		"type":        req.Type,
		"is_deleted":  0,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	// The owner's membership is part of the business record set, so other
	// devices see the full team after a sync.
	owner := store.Row{
		"id":          store.GenerateID(),
		"business_id": row.String("id"),
		"user_id":     userID,
		"role":        enums.TeamRoleOwner.String(),
		"invited_by":  userID,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	err = s.store.RunTransaction(ctx, []store.Mutation{
		store.Insert(store.TableBusinesses, row),
		store.Insert(store.TableTeam, owner),
	})
	if err != nil {
		return nil, err
	}
	biz := mapBusiness(row)
	s.log.Info(s.log.WithBusinessID(ctx, biz.ID), "business created")
	return biz, nil
}

func (s *service) Get(ctx context.Context, businessID string) (*Business, error) {
	row, err := s.row(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return mapBusiness(row), nil
}

// ListForUser returns businesses the user owns plus those where they hold a
// team membership, most recently updated first.
func (s *service) ListForUser(ctx context.Context) ([]Business, error) {
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	owned, err := s.store.Query(ctx, store.Query{
		Table: store.TableBusinesses,
		Where: []store.Cond{store.Eq("owner_id", userID), store.Eq("is_deleted", 0)},
	})
	if err != nil {
		return nil, err
	}

	memberships, err := s.store.Query(ctx, store.Query{
		Table: store.TableTeam,
		Where: []store.Cond{store.Eq("user_id", userID)},
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []Business
	for _, row := range owned {
		seen[row.String("id")] = true
		out = append(out, *mapBusiness(row))
	}
	if len(memberships) > 0 {
		ids := make([]any, 0, len(memberships))
		for _, m := range memberships {
			if id := m.String("business_id"); !seen[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			member, err := s.store.Query(ctx, store.Query{
				Table: store.TableBusinesses,
				Where: []store.Cond{store.In("id", ids), store.Eq("is_deleted", 0)},
			})
			if err != nil {
				return nil, err
			}
			for _, row := range member {
				out = append(out, *mapBusiness(row))
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (s *service) Update(ctx context.Context, businessID string, req UpdateBusinessRequest) (*Business, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid business update")
	}
	if _, err := s.requireManager(ctx, businessID); err != nil {
		return nil, err
	}

	values := store.Row{}
	if req.Name != nil {
		values["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		values["category"] = *req.Category
	}
	if req.Type != nil {
		values["type"] = *req.Type
	}
	if len(values) == 0 {
		return nil, errors.New(errors.CodeValidation, "no business fields to update")
	}
	values["updated_at"] = store.Now()
	values["sync_status"] = enums.SyncStatusPending.String()
	if _, err := s.store.Execute(ctx, store.Update(store.TableBusinesses, values, store.Eq("id", businessID))); err != nil {
		return nil, err
	}
	return s.Get(ctx, businessID)
}

// Delete soft-deletes so the tombstone can still be pushed to other devices.
func (s *service) Delete(ctx context.Context, businessID string) error {
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	row, err := s.row(ctx, businessID)
	if err != nil {
		return err
	}
	if row.String("owner_id") != userID {
		return errors.New(errors.CodeValidation, "only the owner can delete a business")
	}
	_, err = s.store.Execute(ctx, store.Update(store.TableBusinesses, store.Row{
		"is_deleted":  1,
		"sync_status": enums.SyncStatusPending.String(),
		"updated_at":  store.Now(),
	}, store.Eq("id", businessID)))
	if err != nil {
		return err
	}
	if err := s.selection.ClearBusinessIf(ctx, businessID); err != nil {
		return err
	}
	s.log.Info(s.log.WithBusinessID(ctx, businessID), "business deleted")
	return nil
}

func (s *service) AddMember(ctx context.Context, req AddMemberRequest) (*TeamMember, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid member")
	}
	actor, err := s.requireManager(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	biz, err := s.row(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if biz.String("owner_id") == req.UserID {
		return nil, errors.New(errors.CodeConflict, "user already owns this business")
	}

	now := store.Now()
	row := store.Row{
		"id":          store.GenerateID(),
		"business_id": req.BusinessID,
		"user_id":     req.UserID,
		"role":        req.Role,
		"invited_by":  actor,
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	// Re-adding an existing member replaces the previous membership row.
	if _, err := s.store.Execute(ctx, store.Upsert(store.TableTeam, row, "business_id", "user_id")); err != nil {
		return nil, err
	}
	member := mapMember(row)
	s.log.Info(s.log.WithBusinessID(ctx, req.BusinessID), "team member added")
	return member, nil
}

func (s *service) RemoveMember(ctx context.Context, businessID, userID string) error {
	if _, err := s.requireManager(ctx, businessID); err != nil {
		return err
	}
	affected, err := s.store.Execute(ctx, store.Delete(store.TableTeam,
		store.Eq("business_id", businessID), store.Eq("user_id", userID)))
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New(errors.CodeNotFound, "membership not found")
	}
	s.log.Info(s.log.WithBusinessID(ctx, businessID), "team member removed")
	return nil
}

func (s *service) UpdateMemberRole(ctx context.Context, req UpdateMemberRoleRequest) (*TeamMember, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid role update")
	}
	if _, err := s.requireManager(ctx, req.BusinessID); err != nil {
		return nil, err
	}
	affected, err := s.store.Execute(ctx, store.Update(store.TableTeam, store.Row{
		"role":        req.Role,
		"sync_status": enums.SyncStatusPending.String(),
		"updated_at":  store.Now(),
	}, store.Eq("business_id", req.BusinessID), store.Eq("user_id", req.UserID)))
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.New(errors.CodeNotFound, "membership not found")
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableTeam,
		Where: []store.Cond{store.Eq("business_id", req.BusinessID), store.Eq("user_id", req.UserID)},
	})
	if err != nil || len(rows) == 0 {
		return nil, errors.Wrap(errors.CodeInternal, err, "reload membership")
	}
	return mapMember(rows[0]), nil
}

func (s *service) ListMembers(ctx context.Context, businessID string) ([]TeamMember, error) {
	rows, err := s.store.Query(ctx, store.Query{
		Table:   store.TableTeam,
		Where:   []store.Cond{store.Eq("business_id", businessID)},
		OrderBy: "created_at",
	})
	if err != nil {
		return nil, err
	}
	out := make([]TeamMember, 0, len(rows))
	for _, row := range rows {
		out = append(out, *mapMember(row))
	}
	return out, nil
}

// RoleOf resolves the user's effective role: owners are owners even without a
// membership row.
func (s *service) RoleOf(ctx context.Context, businessID, userID string) (enums.TeamRole, error) {
	row, err := s.row(ctx, businessID)
	if err != nil {
		return "", err
	}
	if row.String("owner_id") == userID {
		return enums.TeamRoleOwner, nil
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableTeam,
		Where: []store.Cond{store.Eq("business_id", businessID), store.Eq("user_id", userID)},
	})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.New(errors.CodeNotFound, "user is not part of this business")
	}
	return enums.ParseTeamRole(rows[0].String("role"))
}

// requireManager ensures the acting user may administer the business and
// returns their id.
func (s *service) requireManager(ctx context.Context, businessID string) (string, error) {
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return "", err
	}
	role, err := s.RoleOf(ctx, businessID, userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.New(errors.CodeValidation, "user cannot manage this business")
		}
		return "", err
	}
	if role != enums.TeamRoleOwner && role != enums.TeamRolePartner {
		return "", errors.New(errors.CodeValidation, "user cannot manage this business")
	}
	return userID, nil
}

func (s *service) row(ctx context.Context, businessID string) (store.Row, error) {
	if businessID == "" {
		return nil, errors.New(errors.CodeValidation, "business id is required")
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableBusinesses,
		Where: []store.Cond{store.Eq("id", businessID), store.Eq("is_deleted", 0)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeNotFound, "business not found")
	}
	return rows[0], nil
}

func mapBusiness(row store.Row) *Business {
	return &Business{
		ID:         row.String("id"),
		Name:       row.String("name"),
		OwnerID:    row.String("owner_id"),
		Category:   row.String("category"),
		Type:       row.String("type"),
		Deleted:    row.Bool("is_deleted"),
		SyncStatus: enums.SyncStatus(row.String("sync_status")),
		CreatedAt:  row.String("created_at"),
		UpdatedAt:  row.String("updated_at"),
	}
}

func mapMember(row store.Row) *TeamMember {
	return &TeamMember{
		ID:         row.String("id"),
		BusinessID: row.String("business_id"),
		UserID:     row.String("user_id"),
		Role:       enums.TeamRole(row.String("role")),
		InvitedBy:  row.String("invited_by"),
		CreatedAt:  row.String("created_at"),
		UpdatedAt:  row.String("updated_at"),
	}
}
