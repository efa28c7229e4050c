// Package selection tracks which business and book the user is currently
// working in. The selection is persisted in preferences and revalidated
// lazily on read, so records deleted from another device or session fall out
// of the selection the next time it is consulted.
package selection

import (
	"context"
	"encoding/json"

	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type Selector interface {
	// SetCurrentBusiness validates the business and makes it current. The
	// stored book id is left untouched; CurrentBookID detects the mismatch
	// lazily on the next read.
	SetCurrentBusiness(ctx context.Context, businessID string) error
	// CurrentBusinessID returns the current business, revalidating that it
	// still exists, is not deleted, and is owned by or shared with the
	// session user. A stale selection is cleared and reported as NOT_FOUND.
	CurrentBusinessID(ctx context.Context) (string, error)
	// SetCurrentBook validates the book, requires it to belong to the
	// current business, and makes it current.
	SetCurrentBook(ctx context.Context, bookID string) error
	// CurrentBookID returns the current book, revalidating on every read
	// that the book still exists and still belongs to the current business.
	CurrentBookID(ctx context.Context) (string, error)
	// ClearBusinessIf drops the selection when businessID is current.
	ClearBusinessIf(ctx context.Context, businessID string) error
	// ClearBookIf drops the book selection when bookID is current.
	ClearBookIf(ctx context.Context, bookID string) error
	// Clear drops both selections.
	Clear(ctx context.Context) error
}

type selector struct {
	store store.Store
	prefs prefs.Prefs
	log   *logger.Logger
}

func NewSelector(st store.Store, p prefs.Prefs, log *logger.Logger) Selector {
	return &selector{store: st, prefs: p, log: log}
}

func (s *selector) SetCurrentBusiness(ctx context.Context, businessID string) error {
	if businessID == "" {
		return errors.New(errors.CodeValidation, "business id is required")
	}
	ok, err := s.businessVisible(ctx, businessID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.CodeNotFound, "business not found")
	}
	if err := s.prefs.Set(ctx, prefs.KeyCurrentBusiness, businessID); err != nil {
		return err
	}
	s.log.Info(s.log.WithBusinessID(ctx, businessID), "current business changed")
	return nil
}

func (s *selector) CurrentBusinessID(ctx context.Context) (string, error) {
	businessID, err := s.prefs.Get(ctx, prefs.KeyCurrentBusiness)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.New(errors.CodeNotFound, "no business selected")
		}
		return "", err
	}
	ok, err := s.businessVisible(ctx, businessID)
	if err != nil {
		return "", err
	}
	if !ok {
		s.log.Warn(s.log.WithBusinessID(ctx, businessID), "selected business no longer visible, clearing selection")
		if err := s.Clear(ctx); err != nil {
			return "", err
		}
		return "", errors.New(errors.CodeNotFound, "no business selected")
	}
	return businessID, nil
}

func (s *selector) SetCurrentBook(ctx context.Context, bookID string) error {
	if bookID == "" {
		return errors.New(errors.CodeValidation, "book id is required")
	}
	businessID, err := s.CurrentBusinessID(ctx)
	if err != nil {
		return err
	}
	row, err := s.bookRow(ctx, bookID)
	if err != nil {
		return err
	}
	if row == nil {
		return errors.New(errors.CodeNotFound, "book not found")
	}
	if row.String("business_id") != businessID {
		return errors.New(errors.CodeValidation, "book belongs to a different business")
	}
	if err := s.prefs.Set(ctx, prefs.KeyCurrentBook, bookID); err != nil {
		return err
	}
	s.log.Info(s.log.WithBookID(ctx, bookID), "current book changed")
	return nil
}

func (s *selector) CurrentBookID(ctx context.Context) (string, error) {
	bookID, err := s.prefs.Get(ctx, prefs.KeyCurrentBook)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.New(errors.CodeNotFound, "no book selected")
		}
		return "", err
	}
	businessID, err := s.CurrentBusinessID(ctx)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", s.dropBook(ctx, bookID)
		}
		return "", err
	}
	row, err := s.bookRow(ctx, bookID)
	if err != nil {
		return "", err
	}
	// A book left over from a previous business selection reads as unset.
	if row == nil || row.String("business_id") != businessID {
		return "", s.dropBook(ctx, bookID)
	}
	return bookID, nil
}

func (s *selector) dropBook(ctx context.Context, bookID string) error {
	s.log.Warn(s.log.WithBookID(ctx, bookID), "selected book no longer valid, clearing selection")
	if err := s.prefs.Remove(ctx, prefs.KeyCurrentBook); err != nil {
		return err
	}
	return errors.New(errors.CodeNotFound, "no book selected")
}

func (s *selector) ClearBusinessIf(ctx context.Context, businessID string) error {
	current, err := s.prefs.Get(ctx, prefs.KeyCurrentBusiness)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if current != businessID {
		return nil
	}
	return s.Clear(ctx)
}

func (s *selector) ClearBookIf(ctx context.Context, bookID string) error {
	current, err := s.prefs.Get(ctx, prefs.KeyCurrentBook)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if current != bookID {
		return nil
	}
	return s.prefs.Remove(ctx, prefs.KeyCurrentBook)
}

func (s *selector) Clear(ctx context.Context) error {
	if err := s.prefs.Remove(ctx, prefs.KeyCurrentBusiness); err != nil {
		return err
	}
	return s.prefs.Remove(ctx, prefs.KeyCurrentBook)
}

// businessVisible reports whether the business is live and is owned by or
// shared with the session user. Without a session only existence is checked.
func (s *selector) businessVisible(ctx context.Context, businessID string) (bool, error) {
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableBusinesses,
		Where: []store.Cond{store.Eq("id", businessID), store.Eq("is_deleted", 0)},
	})
	if err != nil || len(rows) == 0 {
		return false, err
	}
	userID := s.sessionUserID(ctx)
	if userID == "" || rows[0].String("owner_id") == userID {
		return true, nil
	}
	members, err := s.store.Query(ctx, store.Query{
		Table: store.TableTeam,
		Where: []store.Cond{store.Eq("business_id", businessID), store.Eq("user_id", userID)},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(members) > 0, nil
}

func (s *selector) sessionUserID(ctx context.Context) string {
	raw, err := s.prefs.Get(ctx, prefs.KeyUserSession)
	if err != nil {
		return ""
	}
	var sess struct {
		UserID string `json:"user_id"`
	}
	if json.Unmarshal([]byte(raw), &sess) != nil || sess.UserID == "" {
		return ""
	}
	return sess.UserID
}

func (s *selector) bookRow(ctx context.Context, bookID string) (store.Row, error) {
	rows, err := s.store.Query(ctx, store.Query{
		Table: store.TableBooks,
		Where: []store.Cond{store.Eq("id", bookID), store.Eq("is_deleted", 0)},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
