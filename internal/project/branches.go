package project

import (
	"context"
	"errors"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/storage"
)

// CreateBranch starts a new branch from a base branch's current state.
func (s *Store) CreateBranch(ctx context.Context, projectID, actor string, input CreateBranchInput) (*models.ProjectBranch, error) {
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

	b, err := s.branches.Create(ctx, e.project, input.Name, input.BaseBranch, actor)
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	s.publish(models.EventBranchCreated, projectID, actor, map[string]string{
		"branch": b.Name,
		"base":   b.BaseBranch,
	})
	bc := *b
	return &bc, nil
}

// SwitchBranch moves the working set to another branch and returns the
// updated aggregate. The branch being left is snapshotted first.
func (s *Store) SwitchBranch(ctx context.Context, projectID, actor, name string) (*models.Project, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if name == e.project.CurrentBranch {
		return cloneProject(e.project)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	if err := s.branches.Switch(ctx, e.project, name); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if err := s.persistFiles(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}

	s.publish(models.EventProjectUpdated, projectID, actor, map[string]string{
		"action": "branch_switched",
		"branch": name,
	})
	return cloneProject(e.project)
}

// MergeBranch folds the source branch into the target. A conflicted
// result mutates nothing and is returned for the caller to resolve; a
// merged result persists the new target state and retires the source.
func (s *Store) MergeBranch(ctx context.Context, projectID, actor, source, target string) (*models.BranchMerge, error) {
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

	// A completed merge rewrites the target's head snapshot before the
	// aggregate is persisted below. Stash the prior blob so a failed
	// persist can put it back, absence included.
	var priorHead []byte
	tgt := e.project.Branch(target)
	if tgt != nil {
		priorHead, err = s.adapter.Load(ctx, storage.BranchSnapshotKey(projectID, tgt.ID))
		if err != nil && !errors.Is(err, perrors.ErrNotFound) {
			return nil, err
		}
	}

	targetWasCurrent := e.project.CurrentBranch == target
	res, err := s.branches.Merge(ctx, e.project, source, target, actor)
	if err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if res.Status == models.MergeConflicted {
		return res, nil
	}

	if targetWasCurrent {
		if err := s.persistFiles(ctx, e.project); err != nil {
			s.rollback(e, undo, true)
			s.restoreBranchHead(projectID, tgt.ID, priorHead)
			return nil, err
		}
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, targetWasCurrent)
		s.restoreBranchHead(projectID, tgt.ID, priorHead)
		return nil, err
	}

	s.publish(models.EventBranchMerged, projectID, actor, map[string]string{
		"source_branch": source,
		"target_branch": target,
	})
	return res, nil
}

// restoreBranchHead puts a branch's head snapshot blob back after a
// failed merge persist, deleting the key when the branch had no
// persisted snapshot before. Runs on a fresh context since the caller's
// may already be dead.
func (s *Store) restoreBranchHead(projectID, branchID string, prior []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()

	key := storage.BranchSnapshotKey(projectID, branchID)
	var err error
	if prior == nil {
		err = s.adapter.Delete(ctx, key)
	} else {
		err = s.adapter.Save(ctx, key, prior)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("project_id", projectID).
			Str("branch_id", branchID).
			Msg("Failed to restore branch snapshot after rollback")
	}
}

// ListBranches returns copies of the project's branch records.
func (s *Store) ListBranches(ctx context.Context, projectID string) ([]*models.ProjectBranch, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}

	branches := make([]*models.ProjectBranch, len(e.project.Branches))
	for i, b := range e.project.Branches {
		bc := *b
		branches[i] = &bc
	}
	return branches, nil
}
