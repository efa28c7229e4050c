package enums

import "fmt"

// EntryType classifies a ledger entry as money in or money out.
type EntryType string

const (
	EntryTypeCashIn  EntryType = "cash_in"
	EntryTypeCashOut EntryType = "cash_out"
)

var validEntryTypes = []EntryType{EntryTypeCashIn, EntryTypeCashOut}

// String implements fmt.Stringer.
func (e EntryType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EntryType.
func (e EntryType) IsValid() bool {
	for _, candidate := range validEntryTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// Label returns the display label used in activity trails.
func (e EntryType) Label() string {
	if e == EntryTypeCashIn {
		return "Cash In"
	}
	return "Cash Out"
}

// ParseEntryType converts raw input into an EntryType.
func ParseEntryType(value string) (EntryType, error) {
	for _, candidate := range validEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entry type %q", value)
}
