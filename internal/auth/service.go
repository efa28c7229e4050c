package auth

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cashlia/cashlia-core/pkg/config"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/security"
	"github.com/cashlia/cashlia-core/pkg/store"
)

const providerLocal = "local"

// Selection is the slice of the context selector auth needs: both register
// and logout reset whatever business and book were selected.
type Selection interface {
	Clear(ctx context.Context) error
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*User, error)
	LoginFederated(ctx context.Context, req FederatedLoginRequest) (*User, error)
	CurrentUserID(ctx context.Context) (string, error)
	CurrentUser(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error)
	Logout(ctx context.Context) error
}

type service struct {
	store     store.Store
	prefs     prefs.Prefs
	selection Selection
	passwords config.PasswordConfig
	log       *logger.Logger
	validate  *validator.Validate
}

func NewService(st store.Store, p prefs.Prefs, sel Selection, passwords config.PasswordConfig, log *logger.Logger) Service {
	return &service{
		store:     st,
		prefs:     p,
		selection: sel,
		passwords: passwords,
		log:       log,
		validate:  validator.New(),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid registration")
	}
	email := normalizeEmail(req.Email)
	existing, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New(errors.CodeValidation, "an account with this email already exists")
	}

	hash, err := security.HashPassword(req.Password, s.passwords)
	if err != nil {
		return nil, err
	}
	now := store.Now()
	row := store.Row{
		"id":            store.GenerateID(),
		"name":          strings.TrimSpace(req.Name),
		"email":         email,
		"phone":         strings.TrimSpace(req.Phone),
		"password_hash": hash,
		"auth_provider": providerLocal,
		"photo_url":     "",
		"created_at":    now,
		"updated_at":    now,
	}
	if _, err := s.store.Execute(ctx, store.Insert(store.TableUsers, row)); err != nil {
		return nil, err
	}
	user := mapUser(row)
	if err := s.startSession(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithUserID(ctx, user.ID), "user registered")
	return user, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid credentials")
	}
	row, err := s.userRowByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.New(errors.CodeUnauthenticated, "invalid email or password")
	}
	hash := row.String("password_hash")
	if hash == "" {
		return nil, errors.New(errors.CodeUnauthenticated, "account uses a federated provider")
	}
	ok, err := security.VerifyPassword(req.Password, hash)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, errors.New(errors.CodeUnauthenticated, "invalid email or password")
	}
	user := mapUser(row)
	if err := s.setSession(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithUserID(ctx, user.ID), "user logged in")
	return user, nil
}

func (s *service) LoginFederated(ctx context.Context, req FederatedLoginRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid federated login")
	}
	email := normalizeEmail(req.Email)
	row, err := s.userRowByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		now := store.Now()
		row = store.Row{
			"id":            store.GenerateID(),
			"name":          strings.TrimSpace(req.Name),
			"email":         email,
			"phone":         "",
			"password_hash": nil,
			"auth_provider": req.Provider,
			"photo_url":     req.PhotoURL,
			"created_at":    now,
			"updated_at":    now,
		}
		if _, err := s.store.Execute(ctx, store.Insert(store.TableUsers, row)); err != nil {
			return nil, err
		}
	}
	user := mapUser(row)
	if err := s.setSession(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithUserID(ctx, user.ID), "federated login")
	return user, nil
}

func (s *service) CurrentUserID(ctx context.Context) (string, error) {
	raw, err := s.prefs.Get(ctx, prefs.KeyUserSession)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.New(errors.CodeUnauthenticated, "not logged in")
		}
		return "", err
	}
	var sess session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || sess.UserID == "" {
		return "", errors.New(errors.CodeUnauthenticated, "session is corrupt")
	}
	return sess.UserID, nil
}

func (s *service) CurrentUser(ctx context.Context) (*User, error) {
	userID, err := s.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableUsers,
		Where: []store.Cond{store.Eq("id", userID)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.CodeUnauthenticated, "session user no longer exists")
	}
	return mapUser(rows[0]), nil
}

func (s *service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, err, "invalid profile update")
	}
	userID, err := s.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	values := store.Row{}
	if req.Name != nil {
		values["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		values["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.PhotoURL != nil {
		values["photo_url"] = *req.PhotoURL
	}
	if len(values) == 0 {
		return nil, errors.New(errors.CodeValidation, "no profile fields to update")
	}
	values["updated_at"] = store.Now()
	if _, err := s.store.Execute(ctx, store.Update(store.TableUsers, values, store.Eq("id", userID))); err != nil {
		return nil, err
	}
	return s.CurrentUser(ctx)
}

func (s *service) Logout(ctx context.Context) error {
	if err := s.prefs.Remove(ctx, prefs.KeyUserSession); err != nil {
		return err
	}
	if err := s.selection.Clear(ctx); err != nil {
		return err
	}
	s.log.Info(ctx, "user logged out")
	return nil
}

// startSession also resets the selection, since a new account has no
// businesses yet.
func (s *service) startSession(ctx context.Context, user *User) error {
	if err := s.selection.Clear(ctx); err != nil {
		return err
	}
	return s.setSession(ctx, user)
}

func (s *service) setSession(ctx context.Context, user *User) error {
	raw, err := json.Marshal(session{
		UserID:     user.ID,
		Email:      user.Email,
		LoggedInAt: store.Now(),
	})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "encode session")
	}
	return s.prefs.Set(ctx, prefs.KeyUserSession, string(raw))
}

func (s *service) userByEmail(ctx context.Context, email string) (*User, error) {
	row, err := s.userRowByEmail(ctx, email)
	if err != nil || row == nil {
		return nil, err
	}
	return mapUser(row), nil
}

func (s *service) userRowByEmail(ctx context.Context, email string) (store.Row, error) {
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableUsers,
		Where: []store.Cond{store.Eq("email", email)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapUser(row store.Row) *User {
	return &User{
		ID:           row.String("id"),
		Name:         row.String("name"),
		Email:        row.String("email"),
		Phone:        row.String("phone"),
		AuthProvider: row.String("auth_provider"),
		PhotoURL:     row.String("photo_url"),
		CreatedAt:    row.String("created_at"),
		UpdatedAt:    row.String("updated_at"),
	}
}
