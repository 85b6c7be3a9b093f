package project

import (
	"context"
	"fmt"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
)

// AddCollaborator grants a user access to the project. The acting
// collaborator needs the invite permission.
func (s *Store) AddCollaborator(ctx context.Context, projectID, actor string, input AddCollaboratorInput) (*models.Collaborator, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if c := e.project.Collaborator(actor); c == nil || !c.Permissions.CanInvite {
		return nil, fmt.Errorf("collaborator %s cannot invite: %w", actor, perrors.ErrInvalidOperation)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	c, err := s.collabs.Add(e.project, input.UserID, input.Role, actor)
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	s.publish(models.EventCollaboratorAdded, projectID, actor, map[string]string{
		"user_id": c.UserID,
		"role":    string(c.Role),
	})
	cc := *c
	return &cc, nil
}

// RemoveCollaborator revokes a user's access. The owner is unremovable.
func (s *Store) RemoveCollaborator(ctx context.Context, projectID, actor, userID string) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return err
	}
	undo, err := cloneProject(e.project)
	if err != nil {
		return err
	}

	if err := s.collabs.Remove(e.project, userID); err != nil {
		s.rollback(e, undo, false)
		return err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return err
	}

	s.publish(models.EventCollaboratorRemoved, projectID, actor, map[string]string{"user_id": userID})
	return nil
}

// UpdateCollaboratorRole reassigns a collaborator's role, recomputing the
// full permission set. The owner's role is fixed.
func (s *Store) UpdateCollaboratorRole(ctx context.Context, projectID, actor, userID string, role models.Role) (*models.Collaborator, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	c, err := s.collabs.UpdateRole(e.project, userID, role)
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	s.publish(models.EventProjectUpdated, projectID, actor, map[string]string{
		"action":  "collaborator_role_updated",
		"user_id": userID,
		"role":    string(role),
	})
	cc := *c
	return &cc, nil
}
