package project

import (
	"context"
	"fmt"
	"time"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/versioning"
)

// CreateVersion records the working set as the next version of the
// project's history. The version blob is persisted before the aggregate
// so a failed aggregate write leaves prior history intact.
func (s *Store) CreateVersion(ctx context.Context, projectID, actor string, input CreateVersionInput) (*models.ProjectVersion, error) {
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

	v, err := s.versions.Create(ctx, e.project, versioning.CreateOptions{
		Summary:      input.Summary,
		CreatedBy:    actor,
		Tags:         input.Tags,
		IsRelease:    input.IsRelease,
		ReleaseNotes: input.ReleaseNotes,
	})
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	if cur := e.project.Branch(e.project.CurrentBranch); cur != nil {
		cur.CurrentVersion = v.Version
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	s.publish(models.EventVersionCreated, projectID, actor, map[string]string{"version": v.Version})
	return v, nil
}

// ListVersions loads the full record behind every version of the project,
// in creation order.
func (s *Store) ListVersions(ctx context.Context, projectID string) ([]*models.ProjectVersion, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.versions.List(ctx, e.project)
}

// GetVersion loads one full version record.
func (s *Store) GetVersion(ctx context.Context, projectID, versionID string) (*models.ProjectVersion, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if e.project.VersionRefByID(versionID) == nil {
		return nil, fmt.Errorf("version %s: %w", versionID, perrors.ErrNotFound)
	}
	return s.versions.Get(ctx, projectID, versionID)
}

// RevertToVersion restores a past version's snapshot into the working set
// and records the result as a new version, so the revert itself stays in
// history. Requires the revert permission.
func (s *Store) RevertToVersion(ctx context.Context, projectID, versionID, actor string) (*models.ProjectVersion, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if c := e.project.Collaborator(actor); c == nil || !c.Permissions.CanRevert {
		return nil, fmt.Errorf("collaborator %s cannot revert versions: %w", actor, perrors.ErrInvalidOperation)
	}
	if e.project.VersionRefByID(versionID) == nil {
		return nil, fmt.Errorf("version %s: %w", versionID, perrors.ErrNotFound)
	}

	target, err := s.versions.Get(ctx, projectID, versionID)
	if err != nil {
		return nil, err
	}
	if target.Snapshot == nil {
		return nil, fmt.Errorf("version %s has no snapshot: %w", versionID, perrors.ErrInvalidOperation)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	s.snapshots.Restore(e.project, target.Snapshot)
	e.project.Touch(time.Now().UTC())

	v, err := s.versions.Create(ctx, e.project, versioning.CreateOptions{
		Summary:   fmt.Sprintf("Revert to version %s", target.Version),
		CreatedBy: actor,
		Tags:      []string{"revert"},
	})
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if cur := e.project.Branch(e.project.CurrentBranch); cur != nil {
		cur.CurrentVersion = v.Version
	}

	if err := s.persistFiles(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("reverted_to", target.Version).
		Str("version", v.Version).
		Msg("Project reverted")
	s.publish(models.EventVersionCreated, projectID, actor, map[string]string{
		"version":     v.Version,
		"reverted_to": target.Version,
	})
	return v, nil
}
