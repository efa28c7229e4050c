package entries

import (
	"context"
	"fmt"

	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// Activity log actions.
const (
	actionCreated = "created"
	actionUpdated = "updated"
)

// trackedField formats one entry column for the activity trail. Values are
// rendered the way the history screen shows them, so the log stays readable
// after the referenced party or category is gone.
type trackedField struct {
	column string
	format func(ctx context.Context, s *service, row store.Row) string
}

var trackedFields = []trackedField{
	{"amount", func(ctx context.Context, s *service, row store.Row) string {
		return formatAmount(row.Float("amount"))
	}},
	{"type", func(ctx context.Context, s *service, row store.Row) string {
		return enums.EntryType(row.String("type")).Label()
	}},
	{"payment_mode", func(ctx context.Context, s *service, row store.Row) string {
		return enums.PaymentMode(row.String("payment_mode")).Label()
	}},
	{"party_id", func(ctx context.Context, s *service, row store.Row) string {
		return s.resolveName(ctx, store.TableParties, row.String("party_id"))
	}},
	{"category_id", func(ctx context.Context, s *service, row store.Row) string {
		return s.resolveName(ctx, store.TableCategories, row.String("category_id"))
	}},
	{"remark", func(ctx context.Context, s *service, row store.Row) string {
		return row.String("remark")
	}},
	{"date_time", func(ctx context.Context, s *service, row store.Row) string {
		return row.String("date_time")
	}},
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}

// resolveName renders a party or category reference for display.
func (s *service) resolveName(ctx context.Context, table, id string) string {
	if id == "" {
		return "None"
	}
	rows, err := s.store.Query(ctx, store.Query{
		Table: table,
		Where: []store.Cond{store.Eq("id", id)},
	})
	if err != nil || len(rows) == 0 {
		return "None"
	}
	return rows[0].String("name")
}

func (s *service) logRow(entry store.Row, userID, action, field, oldValue, newValue string) store.Row {
	return store.Row{
		"id":          store.GenerateID(),
		"entry_id":    entry.String("id"),
		"book_id":     entry.String("book_id"),
		"business_id": entry.String("business_id"),
		"user_id":     userID,
		"action":      action,
		"field":       field,
		"old_value":   oldValue,
		"new_value":   newValue,
		"created_at":  store.Now(),
	}
}

// diffLogs produces one update log per tracked field that changed.
func (s *service) diffLogs(ctx context.Context, before, after store.Row, userID string) []store.Row {
	var logs []store.Row
	for _, field := range trackedFields {
		if valueUnchanged(before[field.column], after[field.column]) {
			continue
		}
		logs = append(logs, s.logRow(after, userID, actionUpdated, field.column,
			field.format(ctx, s, before), field.format(ctx, s, after)))
	}
	return logs
}

func valueUnchanged(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
