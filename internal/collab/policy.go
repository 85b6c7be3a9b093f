package collab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/appdraft/project-engine/internal/models"
)

// Policy maps roles to their full permission sets. Lookups always return
// the whole set; callers never patch individual flags.
type Policy struct {
	roles map[models.Role]models.Permissions
}

// DefaultPolicy returns the compiled-in role table.
func DefaultPolicy() *Policy {
	all := models.Permissions{
		CanEdit:           true,
		CanDelete:         true,
		CanDeploy:         true,
		CanInvite:         true,
		CanManageSettings: true,
		CanViewAnalytics:  true,
		CanRevert:         true,
		CanMerge:          true,
	}
	return &Policy{roles: map[models.Role]models.Permissions{
		models.RoleOwner: all,
		models.RoleAdmin: all,
		models.RoleDeveloper: {
			CanEdit:          true,
			CanViewAnalytics: true,
			CanRevert:        true,
			CanMerge:         true,
		},
		models.RoleReviewer: {
			CanViewAnalytics: true,
		},
		models.RoleViewer: {},
	}}
}

// PermissionsFor returns the permission set for a role. Unknown roles get
// the zero set.
func (p *Policy) PermissionsFor(role models.Role) models.Permissions {
	return p.roles[role]
}

type policyFile struct {
	Roles map[string]policyPermissions `yaml:"roles"`
}

type policyPermissions struct {
	CanEdit           bool `yaml:"can_edit"`
	CanDelete         bool `yaml:"can_delete"`
	CanDeploy         bool `yaml:"can_deploy"`
	CanInvite         bool `yaml:"can_invite"`
	CanManageSettings bool `yaml:"can_manage_settings"`
	CanViewAnalytics  bool `yaml:"can_view_analytics"`
	CanRevert         bool `yaml:"can_revert"`
	CanMerge          bool `yaml:"can_merge"`
}

// LoadPolicy reads a YAML role policy file. Roles named in the file
// replace their compiled-in permission sets wholesale; roles the file
// omits keep the defaults.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return LoadPolicyBytes(raw)
}

// LoadPolicyBytes parses a YAML role policy from bytes (useful for testing).
func LoadPolicyBytes(data []byte) (*Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("policy: parse: %w", err)
	}

	p := DefaultPolicy()
	for name, perms := range f.Roles {
		role := models.Role(name)
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown role %q", name)
		}
		if role == models.RoleOwner {
			return nil, fmt.Errorf("policy: the owner role is not overridable")
		}
		p.roles[role] = models.Permissions{
			CanEdit:           perms.CanEdit,
			CanDelete:         perms.CanDelete,
			CanDeploy:         perms.CanDeploy,
			CanInvite:         perms.CanInvite,
			CanManageSettings: perms.CanManageSettings,
			CanViewAnalytics:  perms.CanViewAnalytics,
			CanRevert:         perms.CanRevert,
			CanMerge:          perms.CanMerge,
		}
	}
	return p, nil
}
