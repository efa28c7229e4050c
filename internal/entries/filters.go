package entries

import (
	"time"

	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// dateRange resolves a DateFilter into inclusive canonical timestamps.
// Relative windows are computed in UTC, matching the store clock.
func dateRange(filter DateFilter, from, to string, now time.Time) (string, string, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch filter {
	case DateFilterAll:
		return "", "", nil
	case DateFilterToday:
		return store.FormatTime(dayStart), store.FormatTime(endOfDay(dayStart)), nil
	case DateFilterYesterday:
		y := dayStart.AddDate(0, 0, -1)
		return store.FormatTime(y), store.FormatTime(endOfDay(y)), nil
	case DateFilterThisMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return store.FormatTime(monthStart), store.FormatTime(endOfMonth(monthStart)), nil
	case DateFilterLastMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return store.FormatTime(monthStart), store.FormatTime(endOfMonth(monthStart)), nil
	case DateFilterRange:
		if from == "" || to == "" {
			return "", "", errors.New(errors.CodeValidation, "range filter requires from and to")
		}
		if _, err := store.ParseTime(from); err != nil {
			return "", "", errors.Wrap(errors.CodeValidation, err, "invalid from timestamp")
		}
		if _, err := store.ParseTime(to); err != nil {
			return "", "", errors.Wrap(errors.CodeValidation, err, "invalid to timestamp")
		}
		return from, to, nil
	default:
		return "", "", errors.New(errors.CodeValidation, "unknown date filter")
	}
}

func endOfDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1).Add(-time.Millisecond)
}

func endOfMonth(monthStart time.Time) time.Time {
	return monthStart.AddDate(0, 1, 0).Add(-time.Millisecond)
}

// conds translates the filters into store conditions scoped to one book.
func (f ListFilters) conds(bookID string, now time.Time) ([]store.Cond, error) {
	conds := []store.Cond{
		store.Eq("book_id", bookID),
	}
	from, to, err := dateRange(f.DateFilter, f.From, f.To, now)
	if err != nil {
		return nil, err
	}
	if from != "" {
		conds = append(conds, store.Gte("date_time", from), store.Lte("date_time", to))
	}
	if f.Type != "" {
		conds = append(conds, store.Eq("type", f.Type))
	}
	if len(f.CreatedBy) > 0 {
		conds = append(conds, store.In("created_by", toAny(f.CreatedBy)))
	}
	if len(f.PartyIDs) > 0 {
		conds = append(conds, store.In("party_id", toAny(f.PartyIDs)))
	}
	if len(f.CategoryIDs) > 0 {
		conds = append(conds, store.In("category_id", toAny(f.CategoryIDs)))
	}
	if len(f.PaymentModes) > 0 {
		conds = append(conds, store.In("payment_mode", toAny(f.PaymentModes)))
	}
	return conds, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
