package entries

import "github.com/cashlia/cashlia-core/pkg/enums"

// Entry is a single cash movement in a book.
type Entry struct {
	ID          string            `json:"id"`
	BookID      string            `json:"book_id"`
	BusinessID  string            `json:"business_id"`
	Type        enums.EntryType   `json:"type"`
	Amount      float64           `json:"amount"`
	Remark      string            `json:"remark,omitempty"`
	PartyID     string            `json:"party_id,omitempty"`
	CategoryID  string            `json:"category_id,omitempty"`
	PaymentMode enums.PaymentMode `json:"payment_mode"`
	DateTime    string            `json:"date_time"`
	// AttachmentPath is an opaque local file path stored verbatim for the
	// capture collaborator; the core never interprets it.
	AttachmentPath string           `json:"attachment_path,omitempty"`
	CreatedBy      string           `json:"created_by"`
	SyncStatus     enums.SyncStatus `json:"sync_status"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

// ActivityLog records who changed what on an entry. Update logs carry one row
// per changed field with display-formatted old and new values.
type ActivityLog struct {
	ID         string `json:"id"`
	EntryID    string `json:"entry_id"`
	BookID     string `json:"book_id"`
	BusinessID string `json:"business_id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	Field      string `json:"field,omitempty"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type CreateEntryRequest struct {
	Type        string  `json:"type" validate:"required,oneof=cash_in cash_out"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Remark      string  `json:"remark" validate:"omitempty,max=500"`
	PartyID     string  `json:"party_id" validate:"omitempty"`
	CategoryID  string  `json:"category_id" validate:"omitempty"`
	PaymentMode string  `json:"payment_mode" validate:"omitempty,oneof=cash online credit_card"`
	// DateTime defaults to now when empty. Canonical timestamp layout.
	DateTime       string `json:"date_time" validate:"omitempty"`
	AttachmentPath string `json:"attachment_path" validate:"omitempty,max=1024"`
}

type UpdateEntryRequest struct {
	Type           *string  `json:"type,omitempty" validate:"omitempty,oneof=cash_in cash_out"`
	Amount         *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Remark         *string  `json:"remark,omitempty" validate:"omitempty,max=500"`
	PartyID        *string  `json:"party_id,omitempty"`
	CategoryID     *string  `json:"category_id,omitempty"`
	PaymentMode    *string  `json:"payment_mode,omitempty" validate:"omitempty,oneof=cash online credit_card"`
	DateTime       *string  `json:"date_time,omitempty"`
	AttachmentPath *string  `json:"attachment_path,omitempty" validate:"omitempty,max=1024"`
}

// DateFilter names the relative date windows the entry list supports.
type DateFilter string

const (
	DateFilterAll       DateFilter = ""
	DateFilterToday     DateFilter = "today"
	DateFilterYesterday DateFilter = "yesterday"
	DateFilterThisMonth DateFilter = "this_month"
	DateFilterLastMonth DateFilter = "last_month"
	DateFilterRange     DateFilter = "range"
)

// ListFilters narrows the entry list. All filters combine with AND; slice
// filters match any of their values. From/To are only consulted for
// DateFilterRange and use the canonical timestamp layout.
type ListFilters struct {
	DateFilter   DateFilter
	From         string
	To           string
	Type         string
	CreatedBy    []string
	PartyIDs     []string
	CategoryIDs  []string
	PaymentModes []string
}

// Summary aggregates the entries a filter matches.
type Summary struct {
	TotalCashIn  float64 `json:"total_cash_in"`
	TotalCashOut float64 `json:"total_cash_out"`
	NetBalance   float64 `json:"net_balance"`
	EntryCount   int     `json:"entry_count"`
}
