package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openBackends returns a fresh, migrated store of each backend so every
// behavior is asserted against both.
func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	docStore, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatalf("open document store: %v", err)
	}
	backends := map[string]Store{"sqlite": openTestSQLite(t), "document": docStore}
	for name, s := range backends {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate %s: %v", name, err)
		}
	}
	return backends
}

func entryRow(id, bookID, entryType string, amount float64, dateTime string) Row {
	return Row{
		"id": id, "book_id": bookID, "business_id": "biz-1",
		"type": entryType, "amount": amount, "remark": nil,
		"party_id": nil, "category_id": nil, "payment_mode": "cash",
		"date_time": dateTime, "created_by": "u1",
		"sync_status": "pending",
		"created_at": dateTime, "updated_at": dateTime,
	}
}

func seedEntries(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	rows := []Row{
		entryRow("e1", "book-1", "cash_in", 500, "2026-08-01T10:00:00.000Z"),
		entryRow("e2", "book-1", "cash_out", 120.50, "2026-08-02T09:30:00.000Z"),
		entryRow("e3", "book-1", "cash_in", 75, "2026-08-15T18:45:00.000Z"),
		entryRow("e4", "book-2", "cash_out", 900, "2026-08-20T08:00:00.000Z"),
	}
	for _, row := range rows {
		if _, err := s.Execute(ctx, Insert(TableEntries, row)); err != nil {
			t.Fatalf("seed entry %s: %v", row.String("id"), err)
		}
	}
}

func TestQueryEquality(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		rows, err := s.Query(context.Background(), Query{
			Table: TableEntries,
			Where: []Cond{Eq("book_id", "book-1"), Eq("type", "cash_in")},
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 2 {
			t.Fatalf("%s: expected 2 rows, got %d", name, len(rows))
		}
	}
}

func TestQueryInAndRange(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		rows, err := s.Query(context.Background(), Query{
			Table: TableEntries,
			Where: []Cond{
				In("id", []any{"e1", "e2", "e3"}),
				Gte("date_time", "2026-08-02T00:00:00.000Z"),
				Lte("date_time", "2026-08-31T23:59:59.999Z"),
			},
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 2 {
			t.Fatalf("%s: expected e2 and e3, got %d rows", name, len(rows))
		}
	}
}

func TestQueryOrGroup(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		// book-1 entries that are either cash_out or above 400.
		rows, err := s.Query(context.Background(), Query{
			Table: TableEntries,
			Where: []Cond{Eq("book_id", "book-1")},
			OrAny: []Cond{Eq("type", "cash_out"), Gte("amount", 400)},
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 2 {
			t.Fatalf("%s: expected e1 and e2, got %d rows", name, len(rows))
		}
	}
}

func TestQueryLikeIsCaseInsensitive(t *testing.T) {
	for name, s := range openBackends(t) {
		ctx := context.Background()
		party := Row{
			"id": "p1", "business_id": "biz-1", "name": "Acme Traders",
			"phone": "555", "type": "customer", "sync_status": "pending",
			"created_at": Now(), "updated_at": Now(),
		}
		if _, err := s.Execute(ctx, Insert(TableParties, party)); err != nil {
			t.Fatalf("%s: insert: %v", name, err)
		}
		rows, err := s.Query(ctx, Query{
			Table: TableParties,
			Where: []Cond{Eq("business_id", "biz-1"), Like("name", "acme")},
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 1 {
			t.Fatalf("%s: expected 1 match, got %d", name, len(rows))
		}
	}
}

func TestQueryOrderAndLimit(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		rows, err := s.Query(context.Background(), Query{
			Table:   TableEntries,
			OrderBy: "date_time",
			Desc:    true,
			Limit:   2,
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 2 || rows[0].String("id") != "e4" || rows[1].String("id") != "e3" {
			t.Fatalf("%s: unexpected order: %v", name, rows)
		}
	}
}

func TestUpdateReportsAffectedRows(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		affected, err := s.Execute(context.Background(), Update(
			TableEntries,
			Row{"sync_status": "synced"},
			Eq("book_id", "book-1"),
		))
		if err != nil {
			t.Fatalf("%s: update: %v", name, err)
		}
		if affected != 3 {
			t.Fatalf("%s: expected 3 affected rows, got %d", name, affected)
		}
		rows, _ := s.Query(context.Background(), Query{
			Table: TableEntries,
			Where: []Cond{Eq("sync_status", "synced")},
		})
		if len(rows) != 3 {
			t.Fatalf("%s: expected 3 synced rows, got %d", name, len(rows))
		}
	}
}

func TestDeleteRemovesMatches(t *testing.T) {
	for name, s := range openBackends(t) {
		seedEntries(t, s)
		affected, err := s.Execute(context.Background(), Delete(TableEntries, Eq("book_id", "book-2")))
		if err != nil {
			t.Fatalf("%s: delete: %v", name, err)
		}
		if affected != 1 {
			t.Fatalf("%s: expected 1 deleted row, got %d", name, affected)
		}
		rows, _ := s.Query(context.Background(), Query{Table: TableEntries})
		if len(rows) != 3 {
			t.Fatalf("%s: expected 3 remaining rows, got %d", name, len(rows))
		}
	}
}

func TestUpsertReplacesOnConflict(t *testing.T) {
	for name, s := range openBackends(t) {
		ctx := context.Background()
		member := Row{
			"id": "t1", "business_id": "biz-1", "user_id": "u2",
			"role": "staff_member", "invited_by": "u1",
			"sync_status": "pending", "created_at": Now(), "updated_at": Now(),
		}
		if _, err := s.Execute(ctx, Upsert(TableTeam, member, "business_id", "user_id")); err != nil {
			t.Fatalf("%s: first upsert: %v", name, err)
		}

		promoted := member.Clone()
		promoted["id"] = "t2"
		promoted["role"] = "business_partner"
		if _, err := s.Execute(ctx, Upsert(TableTeam, promoted, "business_id", "user_id")); err != nil {
			t.Fatalf("%s: second upsert: %v", name, err)
		}

		rows, err := s.Query(ctx, Query{
			Table: TableTeam,
			Where: []Cond{Eq("business_id", "biz-1"), Eq("user_id", "u2")},
		})
		if err != nil {
			t.Fatalf("%s: query: %v", name, err)
		}
		if len(rows) != 1 {
			t.Fatalf("%s: expected one membership row, got %d", name, len(rows))
		}
		if rows[0].String("role") != "business_partner" {
			t.Fatalf("%s: expected replaced role, got %q", name, rows[0].String("role"))
		}
	}
}

func TestRunTransactionAppliesAllMutations(t *testing.T) {
	for name, s := range openBackends(t) {
		ctx := context.Background()
		now := Now()
		err := s.RunTransaction(ctx, []Mutation{
			Insert(TableBooks, Row{
				"id": "book-9", "business_id": "biz-1", "name": "March",
				"created_by": "u1", "is_deleted": 0, "sync_status": "pending",
				"created_at": now, "updated_at": now,
			}),
			Insert(TableEntries, entryRow("e9", "book-9", "cash_in", 50, now)),
			Update(TableBooks, Row{"updated_at": now}, Eq("id", "book-9")),
		})
		if err != nil {
			t.Fatalf("%s: transaction: %v", name, err)
		}
		rows, _ := s.Query(ctx, Query{Table: TableEntries, Where: []Cond{Eq("book_id", "book-9")}})
		if len(rows) != 1 {
			t.Fatalf("%s: expected committed entry, got %d rows", name, len(rows))
		}
	}
}

func TestRunTransactionRejectsInvalidBatchEntirely(t *testing.T) {
	for name, s := range openBackends(t) {
		ctx := context.Background()
		err := s.RunTransaction(ctx, []Mutation{
			Insert(TableParties, Row{
				"id": "p9", "business_id": "biz-1", "name": "Left Behind",
				"phone": nil, "type": nil, "sync_status": "pending",
				"created_at": Now(), "updated_at": Now(),
			}),
			// Update without conditions is rejected, and must take the
			// preceding insert down with it.
			{Kind: MutationUpdate, Table: TableParties, Values: Row{"name": "x"}},
		})
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		rows, _ := s.Query(ctx, Query{Table: TableParties, Where: []Cond{Eq("id", "p9")}})
		if len(rows) != 0 {
			t.Fatalf("%s: partial transaction leaked %d rows", name, len(rows))
		}
	}
}

func TestSQLiteTransactionRollsBackOnConstraintViolation(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := Now()
	category := Row{
		"id": "c1", "business_id": "biz-1", "name": "Rent",
		"display_order": 0, "sync_status": "pending",
		"created_at": now, "updated_at": now,
	}
	err := s.RunTransaction(ctx, []Mutation{
		Insert(TableCategories, category),
		Insert(TableCategories, category), // duplicate primary key
	})
	if err == nil {
		t.Fatalf("expected constraint violation")
	}
	rows, _ := s.Query(ctx, Query{Table: TableCategories, Where: []Cond{Eq("id", "c1")}})
	if len(rows) != 0 {
		t.Fatalf("rollback left %d rows behind", len(rows))
	}
}

func TestDocumentRowsSurviveJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewDocumentStore(dir)
	if err != nil {
		t.Fatalf("open document store: %v", err)
	}
	seedEntries(t, first)

	// A second store over the same directory reads what the first wrote.
	second, err := NewDocumentStore(dir)
	if err != nil {
		t.Fatalf("reopen document store: %v", err)
	}
	rows, err := second.Query(ctx, Query{Table: TableEntries, Where: []Cond{Eq("id", "e2")}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected persisted row, got %d", len(rows))
	}
	row := rows[0]
	if row.Float("amount") != 120.50 {
		t.Fatalf("amount lost precision: %v", row["amount"])
	}
	if row.String("payment_mode") != "cash" {
		t.Fatalf("payment_mode corrupted: %v", row["payment_mode"])
	}
	if !row.IsNull("party_id") {
		t.Fatalf("null column corrupted: %v", row["party_id"])
	}
}
