package parties

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type fakeSelection struct{ businessID string }

func (f *fakeSelection) CurrentBusinessID(ctx context.Context) (string, error) {
	if f.businessID == "" {
		return "", errors.New(errors.CodeNotFound, "no business selected")
	}
	return f.businessID, nil
}

func newTestService(t *testing.T) (Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewService(st, &fakeSelection{businessID: "biz-1"}, log), st
}

func TestCreateListAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	parties := []CreatePartyRequest{
		{Name: "Zed Supplies", Phone: "0191-552", Type: "supplier"},
		{Name: "Acme Traders", Phone: "0191-771", Type: "supplier"},
		{Name: "Acme Retail", Type: "supplier"},
	}
	for _, req := range parties {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("create %s: %v", req.Name, err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %d (%v)", len(list), err)
	}
	if list[0].Name != "Acme Retail" || list[2].Name != "Zed Supplies" {
		t.Fatalf("list not sorted by name: %+v", list)
	}

	found, err := svc.Search(ctx, "acme")
	if err != nil || len(found) != 2 {
		t.Fatalf("search: %d (%v)", len(found), err)
	}

	// Phone substrings match too.
	byPhone, err := svc.Search(ctx, "0191")
	if err != nil || len(byPhone) != 2 {
		t.Fatalf("search by phone: %d (%v)", len(byPhone), err)
	}

	all, err := svc.Search(ctx, "  ")
	if err != nil || len(all) != 3 {
		t.Fatalf("blank search should list all: %d (%v)", len(all), err)
	}
}

func TestUpdateAppliesOnlyGivenFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	party, _ := svc.Create(ctx, CreatePartyRequest{Name: "Acme", Phone: "555"})
	phone := "777"
	updated, err := svc.Update(ctx, party.ID, UpdatePartyRequest{Phone: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Acme" || updated.Phone != "777" {
		t.Fatalf("unexpected party %+v", updated)
	}
	if updated.SyncStatus != "pending" {
		t.Fatalf("update must mark the party pending")
	}
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	party, _ := svc.Create(ctx, CreatePartyRequest{Name: "Acme"})
	now := store.Now()
	if _, err := st.Execute(ctx, store.Insert(store.TableEntries, store.Row{
		"id": "e1", "book_id": "book-1", "business_id": "biz-1",
		"type": "cash_in", "amount": 10, "remark": nil,
		"party_id": party.ID, "category_id": nil, "payment_mode": "cash",
		"date_time": now, "created_by": "u1",
		"sync_status": "pending",
		"created_at": now, "updated_at": now,
	})); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	if err := svc.Delete(ctx, party.ID); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := svc.Get(ctx, party.ID); err != nil {
		t.Fatalf("refused delete must leave the row queryable: %v", err)
	}

	// Once the referencing entry is gone the delete goes through.
	if _, err := st.Execute(ctx, store.Delete(store.TableEntries, store.Eq("id", "e1"))); err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	if err := svc.Delete(ctx, party.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, party.ID); !errors.IsNotFound(err) {
		t.Fatalf("party should be gone, got %v", err)
	}
}
