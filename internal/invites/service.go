// Package invites issues and redeems business invitation links. A link
// carries a random token; redeeming it adds the user to the business team
// exactly once.
package invites

import (
	"context"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/security"
	"github.com/cashlia/cashlia-core/pkg/store"
)

const inviteScheme = "cashlia"

// Invitation is a generated invite link and its backing record.
type Invitation struct {
	Token      string         `json:"token"`
	URL        string         `json:"url"`
	BusinessID string         `json:"business_id"`
	InvitedBy  string         `json:"invited_by"`
	Role       enums.TeamRole `json:"role"`
	ExpiresAt  string         `json:"expires_at"`
	CreatedAt  string         `json:"created_at"`
}

type GenerateRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=business_partner staff_member"`
}

type Session interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// Team resolves roles so only owners and partners can invite.
type Team interface {
	RoleOf(ctx context.Context, businessID, userID string) (enums.TeamRole, error)
}

type Service interface {
	// Generate creates a single-use invitation and returns it with the
	// cashlia:// deep link to share.
	Generate(ctx context.Context, req GenerateRequest) (*Invitation, error)
	// Accept redeems a token for the current user. Expired tokens are
	// rejected; redemption adds the team membership and consumes the token
	// in one transaction, so a token works exactly once.
	Accept(ctx context.Context, token string) error
	// Park stores a token opened before login so it can be redeemed after.
	Park(ctx context.Context, token string) error
	// AcceptPending redeems a parked token if one exists. The token is
	// cleared on success or terminal rejection; a recoverable failure
	// leaves it parked for the next attempt.
	AcceptPending(ctx context.Context) error
}

type service struct {
	store    store.Store
	prefs    prefs.Prefs
	session  Session
	team     Team
	ttl      time.Duration
	log      *logger.Logger
	validate *validator.Validate
}

func NewService(st store.Store, p prefs.Prefs, session Session, team Team, ttl time.Duration, log *logger.Logger) Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &service{
		store:    st,
		prefs:    p,
		session:  session,
		team:     team,
		ttl:      ttl,
		log:      log,
		validate: validator.New(),
	}
}

func (s *service) Generate(ctx context.Context, req GenerateRequest) (*Invitation, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid invitation")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	role, err := s.team.RoleOf(ctx, req.BusinessID, userID)
	if err != nil {
		return nil, err
	}
	if role != enums.TeamRoleOwner && role != enums.TeamRolePartner {
		return nil, errors.New(errors.CodeValidation, "only owners and partners can invite")
	}

	token, err := security.GenerateInviteToken()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "generate token")
	}
	now := time.Now().UTC()
	row := store.Row{
		"token":       token,
		"business_id": req.BusinessID,
		"invited_by":  userID,
		"role":        req.Role,
		"expires_at":  store.FormatTime(now.Add(s.ttl)),
		"created_at":  store.FormatTime(now),
	}
	if _, err := s.store.Execute(ctx, store.Upsert(store.TableInvitations, row)); err != nil {
		return nil, err
	}
	inv := &Invitation{
		Token:      token,
		URL:        inviteURL(req.BusinessID, token),
		BusinessID: req.BusinessID,
		InvitedBy:  userID,
		Role:       enums.TeamRole(req.Role),
		ExpiresAt:  row.String("expires_at"),
		CreatedAt:  row.String("created_at"),
	}
	s.log.Info(s.log.WithBusinessID(ctx, req.BusinessID), "invitation generated")
	return inv, nil
}

func (s *service) Accept(ctx context.Context, token string) error {
	if token == "" {
		return errors.New(errors.CodeValidation, "invitation token is required")
	}
	userID, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableInvitations,
		Where: []store.Cond{store.Eq("token", token)},
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New(errors.CodeNotFound, "invitation not found")
	}
	inv := rows[0]
	if inv.String("expires_at") < store.Now() {
		return errors.New(errors.CodeValidation, "invitation expired")
	}
	businessID := inv.String("business_id")
	if inv.String("invited_by") == userID {
		return errors.New(errors.CodeConflict, "cannot accept your own invitation")
	}
	if role, err := s.team.RoleOf(ctx, businessID, userID); err == nil && role == enums.TeamRoleOwner {
		return errors.New(errors.CodeConflict, "user already owns this business")
	}

	now := store.Now()
	member := store.Row{
		"id":          store.GenerateID(),
		"business_id": businessID,
		"user_id":     userID,
		"role":        inv.String("role"),
		"invited_by":  inv.String("invited_by"),
		"sync_status": enums.SyncStatusPending.String(),
		"created_at":  now,
		"updated_at":  now,
	}
	// Consuming the token deletes it, so a second accept reads not found.
	err = s.store.RunTransaction(ctx, []store.Mutation{
		store.Upsert(store.TableTeam, member, "business_id", "user_id"),
		store.Delete(store.TableInvitations, store.Eq("token", token)),
	})
	if err != nil {
		return err
	}
	s.log.Info(s.log.WithBusinessID(ctx, businessID), "invitation accepted")
	return nil
}

func (s *service) Park(ctx context.Context, token string) error {
	if token == "" {
		return errors.New(errors.CodeValidation, "invitation token is required")
	}
	return s.prefs.Set(ctx, prefs.KeyPendingInvitation, token)
}

func (s *service) AcceptPending(ctx context.Context) error {
	token, err := s.prefs.Get(ctx, prefs.KeyPendingInvitation)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	acceptErr := s.Accept(ctx, token)
	if acceptErr != nil && !terminalAcceptError(acceptErr) {
		return acceptErr
	}
	if removeErr := s.prefs.Remove(ctx, prefs.KeyPendingInvitation); removeErr != nil {
		return removeErr
	}
	return acceptErr
}

// terminalAcceptError reports rejections no retry can cure. Anything else,
// like a missing session, keeps the token parked.
func terminalAcceptError(err error) bool {
	return errors.IsNotFound(err) ||
		errors.HasCode(err, errors.CodeValidation) ||
		errors.HasCode(err, errors.CodeConflict)
}

func inviteURL(businessID, token string) string {
	query := url.Values{}
	query.Set("business", businessID)
	query.Set("token", token)
	u := url.URL{Scheme: inviteScheme, Host: "invite", RawQuery: query.Encode()}
	return u.String()
}

// ParseInviteURL extracts the business id and token from a cashlia:// invite
// link, as received via the platform's deep link handler.
func ParseInviteURL(raw string) (businessID, token string, err error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", "", errors.Wrap(errors.CodeValidation, parseErr, "invalid invite link")
	}
	if u.Scheme != inviteScheme || u.Host != "invite" {
		return "", "", errors.New(errors.CodeValidation, "not an invite link")
	}
	businessID = u.Query().Get("business")
	token = u.Query().Get("token")
	if businessID == "" || token == "" {
		return "", "", errors.New(errors.CodeValidation, "invite link is missing parameters")
	}
	return businessID, token, nil
}
