package enums

import "fmt"

// TeamRole represents a member's permission level within a business.
type TeamRole string

const (
	TeamRoleOwner   TeamRole = "owner"
	TeamRolePartner TeamRole = "business_partner"
	TeamRoleStaff   TeamRole = "staff_member"
)

var validTeamRoles = []TeamRole{TeamRoleOwner, TeamRolePartner, TeamRoleStaff}

// String implements fmt.Stringer.
func (r TeamRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known TeamRole.
func (r TeamRole) IsValid() bool {
	for _, candidate := range validTeamRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseTeamRole converts raw input into a TeamRole.
func ParseTeamRole(value string) (TeamRole, error) {
	for _, candidate := range validTeamRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid team role %q", value)
}
