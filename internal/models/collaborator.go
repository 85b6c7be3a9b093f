package models

import "time"

// Role is a collaborator's access level on a project.
type Role string

// Collaborator roles, from widest to narrowest access.
const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleReviewer  Role = "reviewer"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r names a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleDeveloper, RoleReviewer, RoleViewer:
		return true
	}
	return false
}

// Permissions is the full capability set derived from a role. It is always
// recomputed wholesale from the role policy, never patched field by field.
type Permissions struct {
	CanEdit           bool `json:"can_edit"`
	CanDelete         bool `json:"can_delete"`
	CanDeploy         bool `json:"can_deploy"`
	CanInvite         bool `json:"can_invite"`
	CanManageSettings bool `json:"can_manage_settings"`
	CanViewAnalytics  bool `json:"can_view_analytics"`
	CanRevert         bool `json:"can_revert"`
	CanMerge          bool `json:"can_merge"`
}

// Collaborator binds a user to a project with a role and its derived
// permission set.
type Collaborator struct {
	UserID      string      `json:"user_id"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
	AddedAt     time.Time   `json:"added_at"`
	AddedBy     string      `json:"added_by,omitempty"`
}
