// Package collab manages a project's collaborator list and the role
// policy that derives permission sets.
package collab

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
)

// Registry applies collaborator mutations to a project aggregate.
// The owner entry is immovable: it is created with the project and can
// be neither removed nor reassigned through the registry.
type Registry struct {
	policy *Policy
	logger zerolog.Logger
}

// NewRegistry creates a registry using the given role policy.
func NewRegistry(policy *Policy, logger zerolog.Logger) *Registry {
	return &Registry{
		policy: policy,
		logger: logger.With().Str("component", "collab").Logger(),
	}
}

// Policy returns the active role policy.
func (r *Registry) Policy() *Policy {
	return r.policy
}

// Add appends a collaborator with the full permission set of its role.
func (r *Registry) Add(p *models.Project, userID string, role models.Role, addedBy string) (*models.Collaborator, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, perrors.ErrInvalidOperation)
	}
	if p.Collaborator(userID) != nil {
		return nil, fmt.Errorf("collaborator %s: %w", userID, perrors.ErrAlreadyExists)
	}
	if role == models.RoleOwner && p.Owner() != nil {
		return nil, fmt.Errorf("project already has an owner: %w", perrors.ErrInvalidOperation)
	}

	c := &models.Collaborator{
		UserID:      userID,
		Role:        role,
		Permissions: r.policy.PermissionsFor(role),
		AddedAt:     time.Now().UTC(),
		AddedBy:     addedBy,
	}
	p.Collaborators = append(p.Collaborators, c)

	r.logger.Info().
		Str("project_id", p.ID).
		Str("user_id", userID).
		Str("role", string(role)).
		Msg("Collaborator added")
	return c, nil
}

// Remove deletes a collaborator entry. The owner cannot be removed.
func (r *Registry) Remove(p *models.Project, userID string) error {
	c := p.Collaborator(userID)
	if c == nil {
		return fmt.Errorf("collaborator %s: %w", userID, perrors.ErrNotFound)
	}
	if c.Role == models.RoleOwner {
		return fmt.Errorf("cannot remove the owner: %w", perrors.ErrInvalidOperation)
	}

	for i, entry := range p.Collaborators {
		if entry.UserID == userID {
			p.Collaborators = append(p.Collaborators[:i], p.Collaborators[i+1:]...)
			break
		}
	}

	r.logger.Info().
		Str("project_id", p.ID).
		Str("user_id", userID).
		Msg("Collaborator removed")
	return nil
}

// UpdateRole reassigns a collaborator's role and recomputes the whole
// permission set from the policy. The owner cannot be demoted and the
// owner role cannot be granted here.
func (r *Registry) UpdateRole(p *models.Project, userID string, role models.Role) (*models.Collaborator, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", role, perrors.ErrInvalidOperation)
	}

	c := p.Collaborator(userID)
	if c == nil {
		return nil, fmt.Errorf("collaborator %s: %w", userID, perrors.ErrNotFound)
	}
	if c.Role == models.RoleOwner {
		return nil, fmt.Errorf("cannot change the owner's role: %w", perrors.ErrInvalidOperation)
	}
	if role == models.RoleOwner {
		return nil, fmt.Errorf("ownership is assigned at creation: %w", perrors.ErrInvalidOperation)
	}

	c.Role = role
	c.Permissions = r.policy.PermissionsFor(role)

	r.logger.Info().
		Str("project_id", p.ID).
		Str("user_id", userID).
		Str("role", string(role)).
		Msg("Collaborator role updated")
	return c, nil
}
