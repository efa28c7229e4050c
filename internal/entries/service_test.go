package entries

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/store"
)

type fakeSession struct{ userID string }

func (f *fakeSession) CurrentUserID(ctx context.Context) (string, error) {
	return f.userID, nil
}

type fakeSelection struct{ businessID, bookID string }

func (f *fakeSelection) CurrentBusinessID(ctx context.Context) (string, error) {
	return f.businessID, nil
}

func (f *fakeSelection) CurrentBookID(ctx context.Context) (string, error) {
	if f.bookID == "" {
		return "", errors.New(errors.CodeNotFound, "no book selected")
	}
	return f.bookID, nil
}

func newTestService(t *testing.T) (*service, store.Store) {
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
	svc := NewService(st, &fakeSession{userID: "u1"},
		&fakeSelection{businessID: "biz-1", bookID: "book-1"}, log).(*service)
	return svc, st
}

func seedParty(t *testing.T, st store.Store, id, name string) {
	t.Helper()
	now := store.Now()
	if _, err := st.Execute(context.Background(), store.Insert(store.TableParties, store.Row{
		"id": id, "business_id": "biz-1", "name": name,
		"phone": nil, "type": "customer", "sync_status": "pending",
		"created_at": now, "updated_at": now,
	})); err != nil {
		t.Fatalf("seed party: %v", err)
	}
}

func TestCreateAppliesDefaultsAndLogs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	entry, err := svc.Create(ctx, CreateEntryRequest{Type: "cash_in", Amount: 500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.PaymentMode != enums.PaymentModeCash {
		t.Fatalf("expected cash default, got %s", entry.PaymentMode)
	}
	if entry.DateTime == "" || entry.SyncStatus != enums.SyncStatusPending {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.BookID != "book-1" || entry.BusinessID != "biz-1" || entry.CreatedBy != "u1" {
		t.Fatalf("entry not scoped to selection: %+v", entry)
	}

	logs, err := svc.ActivityLogs(ctx, entry.ID)
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected creation log, got %d (%v)", len(logs), err)
	}
	if logs[0].Action != "created" || logs[0].NewValue != "₹500.00" {
		t.Fatalf("unexpected log %+v", logs[0])
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.Create(ctx, CreateEntryRequest{Type: "cash_in", Amount: -5}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEntryRequest{Type: "transfer", Amount: 5}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateEntryRequest{Type: "cash_in", Amount: 5, DateTime: "yesterday"}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for bad date_time, got %v", err)
	}
}

func seedFilterEntries(t *testing.T, svc *service) {
	t.Helper()
	ctx := context.Background()
	fixtures := []CreateEntryRequest{
		{Type: "cash_in", Amount: 500, PartyID: "p1", PaymentMode: "cash", DateTime: "2026-08-01T10:00:00.000Z"},
		{Type: "cash_out", Amount: 120, PartyID: "p1", PaymentMode: "online", DateTime: "2026-08-02T09:00:00.000Z"},
		{Type: "cash_in", Amount: 75, PartyID: "p2", PaymentMode: "credit_card", DateTime: "2026-08-15T18:00:00.000Z"},
		{Type: "cash_out", Amount: 900, PaymentMode: "cash", DateTime: "2026-07-20T08:00:00.000Z"},
	}
	for _, req := range fixtures {
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func TestListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedFilterEntries(t, svc)

	all, err := svc.List(ctx, ListFilters{})
	if err != nil || len(all) != 4 {
		t.Fatalf("list all: %d (%v)", len(all), err)
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].DateTime < all[i].DateTime {
			t.Fatalf("list not newest-first: %+v", all)
		}
	}

	august, err := svc.List(ctx, ListFilters{
		DateFilter: DateFilterRange,
		From:       "2026-08-01T00:00:00.000Z",
		To:         "2026-08-31T23:59:59.999Z",
	})
	if err != nil || len(august) != 3 {
		t.Fatalf("range filter: %d (%v)", len(august), err)
	}

	cashOut, err := svc.List(ctx, ListFilters{Type: "cash_out"})
	if err != nil || len(cashOut) != 2 {
		t.Fatalf("type filter: %d (%v)", len(cashOut), err)
	}

	p1, err := svc.List(ctx, ListFilters{PartyIDs: []string{"p1"}})
	if err != nil || len(p1) != 2 {
		t.Fatalf("party filter: %d (%v)", len(p1), err)
	}

	modes, err := svc.List(ctx, ListFilters{PaymentModes: []string{"online", "credit_card"}})
	if err != nil || len(modes) != 2 {
		t.Fatalf("payment mode filter: %d (%v)", len(modes), err)
	}

	if _, err := svc.List(ctx, ListFilters{DateFilter: DateFilterRange}); !errors.HasCode(err, errors.CodeValidation) {
		t.Fatalf("expected validation error for open range, got %v", err)
	}
}

func TestRelativeDateFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// Pin the clock so relative windows are deterministic.
	svc.now = func() time.Time {
		return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	}

	fixtures := map[string]string{
		"today":      "2026-08-15T08:00:00.000Z",
		"yesterday":  "2026-08-14T22:30:00.000Z",
		"this month": "2026-08-01T00:00:00.000Z",
		"last month": "2026-07-31T23:59:59.999Z",
	}
	for remark, dateTime := range fixtures {
		if _, err := svc.Create(ctx, CreateEntryRequest{
			Type: "cash_in", Amount: 10, Remark: remark, DateTime: dateTime,
		}); err != nil {
			t.Fatalf("seed %s: %v", remark, err)
		}
	}

	cases := []struct {
		filter DateFilter
		want   int
	}{
		{DateFilterToday, 1},
		{DateFilterYesterday, 1},
		{DateFilterThisMonth, 3},
		{DateFilterLastMonth, 1},
	}
	for _, tc := range cases {
		got, err := svc.List(ctx, ListFilters{DateFilter: tc.filter})
		if err != nil {
			t.Fatalf("%s: %v", tc.filter, err)
		}
		if len(got) != tc.want {
			t.Fatalf("%s: expected %d entries, got %d", tc.filter, tc.want, len(got))
		}
	}
}

func TestSummarizeMatchesFilteredList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedFilterEntries(t, svc)

	filters := ListFilters{
		DateFilter: DateFilterRange,
		From:       "2026-08-01T00:00:00.000Z",
		To:         "2026-08-31T23:59:59.999Z",
	}
	summary, err := svc.Summarize(ctx, filters)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.TotalCashIn != 575 || summary.TotalCashOut != 120 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.NetBalance != 455 || summary.EntryCount != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestUpdateWritesFieldLevelLogs(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedParty(t, st, "p1", "Acme Traders")
	seedParty(t, st, "p2", "Zed Supplies")

	entry, err := svc.Create(ctx, CreateEntryRequest{
		Type: "cash_in", Amount: 500, PartyID: "p1", PaymentMode: "cash",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	amount := 750.0
	entryType := "cash_out"
	party := "p2"
	updated, err := svc.Update(ctx, entry.ID, UpdateEntryRequest{
		Amount: &amount, Type: &entryType, PartyID: &party,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount != 750 || updated.Type != enums.EntryTypeCashOut {
		t.Fatalf("unexpected entry %+v", updated)
	}
	if updated.SyncStatus != enums.SyncStatusPending {
		t.Fatalf("update must mark the entry pending")
	}

	logs, err := svc.ActivityLogs(ctx, entry.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	byField := map[string]ActivityLog{}
	for _, l := range logs {
		if l.Action == "updated" {
			byField[l.Field] = l
		}
	}
	if len(byField) != 3 {
		t.Fatalf("expected 3 field logs, got %d: %+v", len(byField), logs)
	}
	if l := byField["amount"]; l.OldValue != "₹500.00" || l.NewValue != "₹750.00" {
		t.Fatalf("amount log not formatted: %+v", l)
	}
	if l := byField["type"]; l.OldValue != "Cash In" || l.NewValue != "Cash Out" {
		t.Fatalf("type log not labeled: %+v", l)
	}
	if l := byField["party_id"]; l.OldValue != "Acme Traders" || l.NewValue != "Zed Supplies" {
		t.Fatalf("party log not resolved: %+v", l)
	}
}

func TestUpdateWithoutChangesWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	entry, _ := svc.Create(ctx, CreateEntryRequest{Type: "cash_in", Amount: 500})
	amount := 500.0
	same, err := svc.Update(ctx, entry.ID, UpdateEntryRequest{Amount: &amount})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if same.UpdatedAt != entry.UpdatedAt {
		t.Fatalf("no-op update must not touch the row")
	}
	logs, _ := svc.ActivityLogs(ctx, entry.ID)
	if len(logs) != 1 {
		t.Fatalf("no-op update must not add logs, got %d", len(logs))
	}
}

func TestGetScopedToCurrentBook(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	now := store.Now()
	if _, err := st.Execute(ctx, store.Insert(store.TableEntries, store.Row{
		"id": "foreign", "book_id": "book-2", "business_id": "biz-1",
		"type": "cash_in", "amount": 10, "payment_mode": "cash",
		"date_time": now, "created_by": "u1", "sync_status": "pending",
		"created_at": now, "updated_at": now,
	})); err != nil {
		t.Fatalf("seed foreign entry: %v", err)
	}

	if _, err := svc.Get(ctx, "foreign"); !errors.IsNotFound(err) {
		t.Fatalf("entry of another book must read as not found, got %v", err)
	}
}

func TestAttachmentPathStoredVerbatim(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	entry, err := svc.Create(ctx, CreateEntryRequest{
		Type: "cash_in", Amount: 500, AttachmentPath: "file:///captures/receipt-17.jpg",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.AttachmentPath != "file:///captures/receipt-17.jpg" {
		t.Fatalf("attachment path mangled: %q", entry.AttachmentPath)
	}

	cleared := ""
	updated, err := svc.Update(ctx, entry.ID, UpdateEntryRequest{AttachmentPath: &cleared})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AttachmentPath != "" {
		t.Fatalf("attachment path should be cleared, got %q", updated.AttachmentPath)
	}
}

func TestDeleteRemovesEntryAndLogsAtomically(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	entry, _ := svc.Create(ctx, CreateEntryRequest{Type: "cash_in", Amount: 500})
	if err := svc.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Get(ctx, entry.ID); !errors.IsNotFound(err) {
		t.Fatalf("deleted entry should be gone, got %v", err)
	}
	rows, _ := st.Query(ctx, store.Query{
		Table: store.TableEntries,
		Where: []store.Cond{store.Eq("id", entry.ID)},
	})
	if len(rows) != 0 {
		t.Fatalf("entry row should be removed, got %v", rows)
	}
	logRows, _ := st.Query(ctx, store.Query{
		Table: store.TableActivityLog,
		Where: []store.Cond{store.Eq("entry_id", entry.ID)},
	})
	if len(logRows) != 0 {
		t.Fatalf("activity trail should be gone, got %d rows", len(logRows))
	}
}
