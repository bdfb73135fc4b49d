package model

import "strings"

// Role is the platform-wide role of an identity
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// OrgRole is the role an identity holds inside its organization
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
	OrgRoleViewer OrgRole = "viewer"
)

// Identity is an authenticated user
type Identity struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	DisplayName  string  `json:"display_name,omitempty"`
	AvatarURL    string  `json:"avatar_url,omitempty"`
	Role         Role    `json:"role"`
	Organization string  `json:"organization,omitempty"`
	OrgRole      OrgRole `json:"org_role,omitempty"`
}

// ParseRole converts a raw value into a Role, rejecting anything outside the enumeration
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", NewValidationError("role", "must be one of admin, user")
	}
}

// ParseOrgRole converts a raw value into an OrgRole. An empty value means no affiliation.
func ParseOrgRole(s string) (OrgRole, error) {
	switch OrgRole(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case OrgRoleOwner:
		return OrgRoleOwner, nil
	case OrgRoleAdmin:
		return OrgRoleAdmin, nil
	case OrgRoleMember:
		return OrgRoleMember, nil
	case OrgRoleViewer:
		return OrgRoleViewer, nil
	default:
		return "", NewValidationError("org_role", "must be one of owner, admin, member, viewer")
	}
}

// HasRole reports whether identity holds any of roles. A nil identity fails every check.
func HasRole(identity *Identity, roles ...Role) bool {
	if identity == nil {
		return false
	}
	for _, r := range roles {
		if identity.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin is shorthand for HasRole(identity, RoleAdmin)
func (i *Identity) IsAdmin() bool {
	return HasRole(i, RoleAdmin)
}
