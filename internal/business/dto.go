package business

import "github.com/cashlia/cashlia-core/pkg/enums"

// Business is one bookkeeping tenant. A user can own several and be a team
// member in others.
type Business struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	OwnerID    string           `json:"owner_id"`
	Category   string           `json:"category,omitempty"`
	Type       string           `json:"type,omitempty"`
	Deleted    bool             `json:"is_deleted"`
	SyncStatus enums.SyncStatus `json:"sync_status"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

// TeamMember is a user's membership in a business. The owner gets one at
// business creation; everyone else through invitations or AddMember.
type TeamMember struct {
	ID         string         `json:"id"`
	BusinessID string         `json:"business_id"`
	UserID     string         `json:"user_id"`
	Role       enums.TeamRole `json:"role"`
	InvitedBy  string         `json:"invited_by,omitempty"`
	CreatedAt  string         `json:"created_at"`
	UpdatedAt  string         `json:"updated_at"`
}

type CreateBusinessRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Category string `json:"category" validate:"omitempty,max=60"`
	Type     string `json:"type" validate:"omitempty,max=60"`
}

type UpdateBusinessRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=60"`
	Type     *string `json:"type,omitempty" validate:"omitempty,max=60"`
}

type AddMemberRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
	UserID     string `json:"user_id" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=business_partner staff_member"`
}

type UpdateMemberRoleRequest struct {
	BusinessID string `json:"business_id" validate:"required"`
	UserID     string `json:"user_id" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=business_partner staff_member"`
}
