// Package branch manages a project's branches: creation, working set
// switches and merges with per-file conflict detection.
package branch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/snapshot"
	"github.com/appdraft/project-engine/internal/storage"
	"github.com/appdraft/project-engine/internal/versioning"
)

// DefaultBranchName is the branch every project starts on.
const DefaultBranchName = "main"

// Manager creates, switches and merges branches. Like the version manager
// it mutates the passed aggregate but never persists it; branch snapshot
// blobs are its only storage writes.
type Manager struct {
	adapter   storage.Adapter
	snapshots *snapshot.Engine
	logger    zerolog.Logger
}

// NewManager creates a branch manager on top of the given adapter.
func NewManager(adapter storage.Adapter, snapshots *snapshot.Engine, logger zerolog.Logger) *Manager {
	return &Manager{
		adapter:   adapter,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "branch").Logger(),
	}
}

// CreateDefault installs the project's first branch and makes it current.
// The default branch is protected by convention. Unlike Create it needs no
// existing base branch, so project creation and import use it to bootstrap
// an aggregate that has none yet.
func (m *Manager) CreateDefault(ctx context.Context, p *models.Project, name, createdBy string) (*models.ProjectBranch, error) {
	if name == "" {
		name = DefaultBranchName
	}
	if p.Branch(name) != nil {
		return nil, fmt.Errorf("branch %q: %w", name, perrors.ErrAlreadyExists)
	}

	b := &models.ProjectBranch{
		ID:             uuid.NewString(),
		Name:           name,
		BaseVersion:    p.CurrentVersion,
		CurrentVersion: p.CurrentVersion,
		IsDefault:      true,
		IsProtected:    true,
		Status:         models.BranchActive,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	}

	snap := m.snapshots.Capture(p)
	if err := m.saveSnapshot(ctx, storage.BranchSnapshotKey(p.ID, b.ID), snap); err != nil {
		return nil, err
	}
	if err := m.saveSnapshot(ctx, storage.BranchBaseKey(p.ID, b.ID), snap); err != nil {
		return nil, err
	}

	p.Branches = append(p.Branches, b)
	p.CurrentBranch = b.Name

	m.logger.Info().
		Str("project_id", p.ID).
		Str("branch", name).
		Msg("Default branch created")
	return b, nil
}

// Create appends a new active branch starting from the base branch's
// current state. The base defaults to the project's current branch. The
// starting snapshot is persisted twice under the new branch's id: as the
// mutable head and as the immutable branch-point record merges consult
// for fast-forward detection.
func (m *Manager) Create(ctx context.Context, p *models.Project, name, baseBranch, createdBy string) (*models.ProjectBranch, error) {
	if name == "" {
		return nil, fmt.Errorf("branch name must not be empty: %w", perrors.ErrInvalidOperation)
	}
	if p.Branch(name) != nil {
		return nil, fmt.Errorf("branch %q: %w", name, perrors.ErrAlreadyExists)
	}

	base := baseBranch
	if base == "" {
		base = p.CurrentBranch
	}
	baseRef := p.Branch(base)
	if baseRef == nil {
		return nil, fmt.Errorf("base branch %q: %w", base, perrors.ErrNotFound)
	}

	snap, err := m.head(ctx, p, baseRef)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = m.snapshots.Capture(p)
	}

	b := &models.ProjectBranch{
		ID:             uuid.NewString(),
		Name:           name,
		BaseBranch:     base,
		BaseVersion:    p.CurrentVersion,
		CurrentVersion: p.CurrentVersion,
		Status:         models.BranchActive,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	}

	if err := m.saveSnapshot(ctx, storage.BranchSnapshotKey(p.ID, b.ID), snap); err != nil {
		return nil, err
	}
	if err := m.saveSnapshot(ctx, storage.BranchBaseKey(p.ID, b.ID), snap); err != nil {
		return nil, err
	}

	p.Branches = append(p.Branches, b)
	p.Touch(b.CreatedAt)

	m.logger.Info().
		Str("project_id", p.ID).
		Str("branch", name).
		Str("base", base).
		Msg("Branch created")
	return b, nil
}

// Switch moves the project's working set to another branch. The branch
// being left is snapshotted first so in-flight edits are never lost. If
// the target has no persisted snapshot yet the live files stay untouched;
// otherwise they are replaced from the target's snapshot.
func (m *Manager) Switch(ctx context.Context, p *models.Project, name string) error {
	target := p.Branch(name)
	if target == nil {
		return fmt.Errorf("branch %q: %w", name, perrors.ErrNotFound)
	}
	if name == p.CurrentBranch {
		return nil
	}

	if cur := p.Branch(p.CurrentBranch); cur != nil {
		if err := m.saveSnapshot(ctx, storage.BranchSnapshotKey(p.ID, cur.ID), m.snapshots.Capture(p)); err != nil {
			return err
		}
		cur.CurrentVersion = p.CurrentVersion
	}

	snap, err := m.loadSnapshot(ctx, storage.BranchSnapshotKey(p.ID, target.ID))
	if err != nil {
		return err
	}
	if snap != nil {
		m.snapshots.Restore(p, snap)
	}

	p.CurrentBranch = target.Name
	p.CurrentVersion = target.CurrentVersion
	p.Touch(time.Now().UTC())

	m.logger.Info().
		Str("project_id", p.ID).
		Str("branch", name).
		Msg("Branch switched")
	return nil
}

// Merge folds the source branch into the target. A path present in both
// branches with differing content is a conflict unless the target still
// holds the content the source branched from, in which case the source's
// change fast-forwards cleanly. Any conflict makes the result conflicted
// and nothing is mutated or persisted. With no conflicts every source
// file is copied into the target, the target branch version gets a patch
// bump and the source branch becomes merged, which is terminal.
func (m *Manager) Merge(ctx context.Context, p *models.Project, sourceName, targetName, actor string) (*models.BranchMerge, error) {
	src := p.Branch(sourceName)
	if src == nil {
		return nil, fmt.Errorf("source branch %q: %w", sourceName, perrors.ErrNotFound)
	}
	tgt := p.Branch(targetName)
	if tgt == nil {
		return nil, fmt.Errorf("target branch %q: %w", targetName, perrors.ErrNotFound)
	}
	if sourceName == targetName {
		return nil, fmt.Errorf("cannot merge branch %q into itself: %w", sourceName, perrors.ErrInvalidOperation)
	}
	if src.Status == models.BranchMerged {
		return nil, fmt.Errorf("branch %q is already merged: %w", sourceName, perrors.ErrInvalidOperation)
	}
	if tgt.IsProtected && !canMerge(p, actor) {
		return nil, fmt.Errorf("branch %q is protected: %w", targetName, perrors.ErrProtectedBranch)
	}

	srcSnap, err := m.head(ctx, p, src)
	if err != nil {
		return nil, err
	}
	if srcSnap == nil {
		srcSnap = &models.ProjectSnapshot{Files: map[string]models.FileSnapshot{}}
	}
	tgtSnap, err := m.head(ctx, p, tgt)
	if err != nil {
		return nil, err
	}
	if tgtSnap == nil {
		tgtSnap = &models.ProjectSnapshot{Files: map[string]models.FileSnapshot{}}
	}
	baseSnap, err := m.loadSnapshot(ctx, storage.BranchBaseKey(p.ID, src.ID))
	if err != nil {
		return nil, err
	}
	if baseSnap == nil {
		baseSnap = &models.ProjectSnapshot{Files: map[string]models.FileSnapshot{}}
	}

	merge := &models.BranchMerge{
		ID:           uuid.NewString(),
		SourceBranch: sourceName,
		TargetBranch: targetName,
		Status:       models.MergePending,
	}

	if conflicts := findConflicts(srcSnap, tgtSnap, baseSnap); len(conflicts) > 0 {
		merge.Status = models.MergeConflicted
		merge.Conflicts = conflicts
		m.logger.Warn().
			Str("project_id", p.ID).
			Str("source", sourceName).
			Str("target", targetName).
			Int("conflicts", len(conflicts)).
			Msg("Merge conflicted")
		return merge, nil
	}

	nextVersion, err := versioning.NextVersion(tgt.CurrentVersion)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if targetName == p.CurrentBranch {
		applyFiles(p, srcSnap, now)
		if err := m.saveSnapshot(ctx, storage.BranchSnapshotKey(p.ID, tgt.ID), m.snapshots.Capture(p)); err != nil {
			return nil, err
		}
		p.CurrentVersion = nextVersion
	} else {
		merged := make(map[string]models.FileSnapshot, len(tgtSnap.Files)+len(srcSnap.Files))
		for filePath, fs := range tgtSnap.Files {
			merged[filePath] = fs
		}
		for filePath, fs := range srcSnap.Files {
			merged[filePath] = fs
		}
		if err := m.saveSnapshot(ctx, storage.BranchSnapshotKey(p.ID, tgt.ID), m.snapshots.Compose(merged)); err != nil {
			return nil, err
		}
	}

	tgt.CurrentVersion = nextVersion
	src.Status = models.BranchMerged
	p.Touch(now)

	merge.Status = models.MergeCompleted
	merge.MergedAt = now
	merge.MergedBy = actor

	m.logger.Info().
		Str("project_id", p.ID).
		Str("source", sourceName).
		Str("target", targetName).
		Str("version", nextVersion).
		Msg("Branch merged")
	return merge, nil
}

// head returns a branch's latest state: a live capture when the branch is
// the project's current branch, else its last persisted snapshot. Returns
// nil when no snapshot has been persisted yet.
func (m *Manager) head(ctx context.Context, p *models.Project, b *models.ProjectBranch) (*models.ProjectSnapshot, error) {
	if b.Name == p.CurrentBranch {
		return m.snapshots.Capture(p), nil
	}
	return m.loadSnapshot(ctx, storage.BranchSnapshotKey(p.ID, b.ID))
}

func (m *Manager) saveSnapshot(ctx context.Context, key string, snap *models.ProjectSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode branch snapshot: %w", err)
	}
	return m.adapter.Save(ctx, key, data)
}

func (m *Manager) loadSnapshot(ctx context.Context, key string) (*models.ProjectSnapshot, error) {
	data, err := m.adapter.Load(ctx, key)
	if err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var snap models.ProjectSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode branch snapshot: %w", err)
	}
	return &snap, nil
}

// findConflicts reports every diverged path, ordered by path. A path
// present in both snapshots with differing hashes is diverged unless the
// target still matches the source's branch-point content, which means
// only the source moved and its change applies cleanly.
func findConflicts(src, tgt, base *models.ProjectSnapshot) []models.MergeConflict {
	var conflicts []models.MergeConflict
	for _, filePath := range src.Paths() {
		srcFile := src.Files[filePath]
		tgtFile, ok := tgt.Files[filePath]
		if !ok || srcFile.Hash == tgtFile.Hash {
			continue
		}
		if baseFile, ok := base.Files[filePath]; ok && tgtFile.Hash == baseFile.Hash {
			continue
		}
		conflicts = append(conflicts, models.MergeConflict{
			Path:          filePath,
			Type:          models.ConflictContent,
			SourceContent: srcFile.Content,
			TargetContent: tgtFile.Content,
		})
	}
	return conflicts
}

// applyFiles copies every file of the source snapshot into the live
// working set: existing paths are updated in place with a per-file version
// bump, new paths are appended as fresh files.
func applyFiles(p *models.Project, src *models.ProjectSnapshot, now time.Time) {
	for _, filePath := range src.Paths() {
		fs := src.Files[filePath]
		if f := p.FileByPath(filePath); f != nil {
			if f.Hash == fs.Hash {
				continue
			}
			f.Content = fs.Content
			f.Hash = fs.Hash
			f.Size = fs.Size
			f.Version++
			f.LastModified = now
			continue
		}
		name, ext := models.SplitPath(filePath)
		p.Files = append(p.Files, &models.ProjectFile{
			ID:           uuid.NewString(),
			Path:         filePath,
			Name:         name,
			Extension:    ext,
			Content:      fs.Content,
			Size:         fs.Size,
			Hash:         fs.Hash,
			Version:      1,
			LastModified: now,
		})
	}
	p.Directories = snapshot.DirectoryPaths(snapshot.BuildTree(p.Files))
}

// canMerge reports whether the actor holds merge permission on the
// project.
func canMerge(p *models.Project, actor string) bool {
	c := p.Collaborator(actor)
	return c != nil && c.Permissions.CanMerge
}
