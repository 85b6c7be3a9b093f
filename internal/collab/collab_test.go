package collab

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(DefaultPolicy(), zerolog.Nop())
}

func ownedProject(t *testing.T, r *Registry) *models.Project {
	t.Helper()
	p := &models.Project{ID: "p1"}
	_, err := r.Add(p, "owner-1", models.RoleOwner, "")
	require.NoError(t, err)
	return p
}

func TestAdd(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	c, err := r.Add(p, "dev-1", models.RoleDeveloper, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDeveloper, c.Role)
	assert.True(t, c.Permissions.CanEdit)
	assert.True(t, c.Permissions.CanMerge)
	assert.False(t, c.Permissions.CanDelete)
	assert.Equal(t, "owner-1", c.AddedBy)
	assert.Len(t, p.Collaborators, 2)
}

func TestAdd_Duplicate(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	_, err := r.Add(p, "dev-1", models.RoleDeveloper, "owner-1")
	require.NoError(t, err)

	_, err = r.Add(p, "dev-1", models.RoleViewer, "owner-1")
	assert.ErrorIs(t, err, perrors.ErrAlreadyExists)
	assert.Len(t, p.Collaborators, 2)
}

func TestAdd_SecondOwner(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	_, err := r.Add(p, "usurper", models.RoleOwner, "owner-1")
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
}

func TestAdd_UnknownRole(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	_, err := r.Add(p, "x", models.Role("superuser"), "owner-1")
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
}

func TestRemove(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)
	_, err := r.Add(p, "dev-1", models.RoleDeveloper, "owner-1")
	require.NoError(t, err)

	require.NoError(t, r.Remove(p, "dev-1"))
	assert.Nil(t, p.Collaborator("dev-1"))
	assert.Len(t, p.Collaborators, 1)
}

func TestRemove_Owner(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	err := r.Remove(p, "owner-1")
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
	assert.NotNil(t, p.Owner())
}

func TestRemove_Missing(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)

	err := r.Remove(p, "ghost")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestUpdateRole_RecomputesFullSet(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)
	_, err := r.Add(p, "dev-1", models.RoleDeveloper, "owner-1")
	require.NoError(t, err)

	c, err := r.UpdateRole(p, "dev-1", models.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, c.Role)
	assert.Equal(t, models.Permissions{}, c.Permissions, "demotion clears every flag")

	c, err = r.UpdateRole(p, "dev-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, c.Permissions.CanDelete)
	assert.True(t, c.Permissions.CanManageSettings)
}

func TestUpdateRole_OwnerImmutable(t *testing.T) {
	r := testRegistry(t)
	p := ownedProject(t, r)
	_, err := r.Add(p, "dev-1", models.RoleDeveloper, "owner-1")
	require.NoError(t, err)

	_, err = r.UpdateRole(p, "owner-1", models.RoleViewer)
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)

	_, err = r.UpdateRole(p, "dev-1", models.RoleOwner)
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
}

func TestLoadPolicyBytes_Override(t *testing.T) {
	data := []byte(`
roles:
  reviewer:
    can_view_analytics: true
    can_merge: true
`)
	p, err := LoadPolicyBytes(data)
	require.NoError(t, err)

	perms := p.PermissionsFor(models.RoleReviewer)
	assert.True(t, perms.CanMerge, "file grants merge to reviewers")
	assert.True(t, perms.CanViewAnalytics)
	assert.False(t, perms.CanEdit, "flags absent from the file stay off")

	// Roles the file omits keep compiled-in defaults
	assert.True(t, p.PermissionsFor(models.RoleDeveloper).CanEdit)
}

func TestLoadPolicyBytes_Invalid(t *testing.T) {
	_, err := LoadPolicyBytes([]byte("roles:\n  superuser: {}\n"))
	assert.Error(t, err)

	_, err = LoadPolicyBytes([]byte("roles:\n  owner: {}\n"))
	assert.Error(t, err)

	_, err = LoadPolicyBytes([]byte("{not yaml"))
	assert.Error(t, err)
}
