package categories

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

func TestCreateAssignsNextDisplayOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.Create(ctx, CreateCategoryRequest{Name: "Rent"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.Create(ctx, CreateCategoryRequest{Name: "Salary"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.DisplayOrder != 0 || second.DisplayOrder != 1 {
		t.Fatalf("unexpected order %d, %d", first.DisplayOrder, second.DisplayOrder)
	}
}

func TestReorderPersistsNewPositions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rent, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Rent"})
	salary, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Salary"})
	fuel, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Fuel"})

	if err := svc.Reorder(ctx, []string{fuel.ID, rent.ID, salary.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	list, err := svc.List(ctx)
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %d (%v)", len(list), err)
	}
	if list[0].ID != fuel.ID || list[1].ID != rent.ID || list[2].ID != salary.ID {
		t.Fatalf("order not applied: %+v", list)
	}
}

func TestReorderRejectsPartialOrDuplicateOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rent, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Rent"})
	salary, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Salary"})

	if err := svc.Reorder(ctx, []string{rent.ID}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for partial ordering, got %v", err)
	}
	if err := svc.Reorder(ctx, []string{rent.ID, rent.ID}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for duplicate ids, got %v", err)
	}
	_ = salary
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	rent, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Rent"})
	now := store.Now()
	if _, err := st.Execute(ctx, store.Insert(store.TableEntries, store.Row{
		"id": "e1", "book_id": "book-1", "business_id": "biz-1",
		"type": "cash_out", "amount": 900, "remark": nil,
		"party_id": nil, "category_id": rent.ID, "payment_mode": "cash",
		"date_time": now, "created_by": "u1",
		"sync_status": "pending",
		"created_at": now, "updated_at": now,
	})); err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	if err := svc.Delete(ctx, rent.ID); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if _, err := svc.Get(ctx, rent.ID); err != nil {
		t.Fatalf("refused delete must leave the row queryable: %v", err)
	}

	if _, err := st.Execute(ctx, store.Delete(store.TableEntries, store.Eq("id", "e1"))); err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	if err := svc.Delete(ctx, rent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, rent.ID); !errors.IsNotFound(err) {
		t.Fatalf("category should be gone, got %v", err)
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	rent, _ := svc.Create(ctx, CreateCategoryRequest{Name: "Rent"})
	renamed, err := svc.Rename(ctx, rent.ID, "Office Rent")
	if err != nil || renamed.Name != "Office Rent" {
		t.Fatalf("rename: %+v %v", renamed, err)
	}
	if renamed.SyncStatus != "pending" {
		t.Fatalf("rename must mark the category pending")
	}
}
