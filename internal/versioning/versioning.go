// Package versioning creates and retrieves the immutable version history
// of a project.
package versioning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blang/semver/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/appdraft/project-engine/internal/diff"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/snapshot"
	"github.com/appdraft/project-engine/internal/storage"
)

// InitialVersion is assigned when a project gains its first version.
const InitialVersion = "0.1.0"

// rolloverLimit caps the patch and minor components. Reaching it carries
// into the next component.
const rolloverLimit = 100

// Manager creates version records and loads them back from storage.
// It mutates the passed project aggregate (current version, version refs)
// but never persists the aggregate itself; that stays with the caller.
type Manager struct {
	adapter   storage.Adapter
	snapshots *snapshot.Engine
	logger    zerolog.Logger
}

// NewManager creates a version manager on top of the given adapter.
func NewManager(adapter storage.Adapter, snapshots *snapshot.Engine, logger zerolog.Logger) *Manager {
	return &Manager{
		adapter:   adapter,
		snapshots: snapshots,
		logger:    logger.With().Str("component", "versioning").Logger(),
	}
}

// CreateOptions carries the caller-supplied fields of a new version.
type CreateOptions struct {
	Summary      string
	CreatedBy    string
	Tags         []string
	IsRelease    bool
	ReleaseNotes string
}

// Create computes the next semantic version, captures a snapshot of the
// live files, derives the change set since the newest persisted version
// and appends the resulting record. The full record is persisted as its
// own blob; the aggregate receives a VersionRef and the new current
// version.
func (m *Manager) Create(ctx context.Context, p *models.Project, opts CreateOptions) (*models.ProjectVersion, error) {
	prior, err := m.LatestSnapshot(ctx, p)
	if err != nil {
		return nil, err
	}

	next, err := NextVersion(p.CurrentVersion)
	if err != nil {
		return nil, err
	}

	v := &models.ProjectVersion{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		Version:      next,
		Snapshot:     m.snapshots.Capture(p),
		Changes:      diff.Changes(p, prior),
		Summary:      opts.Summary,
		CreatedBy:    opts.CreatedBy,
		CreatedAt:    time.Now().UTC(),
		Tags:         opts.Tags,
		IsRelease:    opts.IsRelease,
		ReleaseNotes: opts.ReleaseNotes,
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode version: %w", err)
	}
	if err := m.adapter.Save(ctx, storage.VersionKey(p.ID, v.ID), data); err != nil {
		return nil, err
	}

	p.CurrentVersion = next
	p.Versions = append(p.Versions, v.Ref())
	p.Touch(v.CreatedAt)

	m.logger.Info().
		Str("project_id", p.ID).
		Str("version", next).
		Int("changes", len(v.Changes)).
		Msg("Version created")
	return v, nil
}

// Get loads one full version record.
func (m *Manager) Get(ctx context.Context, projectID, versionID string) (*models.ProjectVersion, error) {
	data, err := m.adapter.Load(ctx, storage.VersionKey(projectID, versionID))
	if err != nil {
		return nil, err
	}
	var v models.ProjectVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode version %s: %w", versionID, err)
	}
	return &v, nil
}

// List loads the full record behind every version ref of the aggregate,
// in creation order.
func (m *Manager) List(ctx context.Context, p *models.Project) ([]*models.ProjectVersion, error) {
	versions := make([]*models.ProjectVersion, 0, len(p.Versions))
	for _, ref := range p.Versions {
		v, err := m.Get(ctx, p.ID, ref.ID)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// LatestSnapshot loads the snapshot of the newest persisted version, or
// nil when the project has no versions yet.
func (m *Manager) LatestSnapshot(ctx context.Context, p *models.Project) (*models.ProjectSnapshot, error) {
	ref := p.LatestVersion()
	if ref == nil {
		return nil, nil
	}
	v, err := m.Get(ctx, p.ID, ref.ID)
	if err != nil {
		return nil, err
	}
	return v.Snapshot, nil
}

// NextVersion computes the successor of a semantic version string. The
// patch component increments by one; at the rollover limit it resets and
// carries into minor, and minor likewise into major. An empty current
// version yields the initial version.
func NextVersion(current string) (string, error) {
	if current == "" {
		return InitialVersion, nil
	}
	v, err := semver.Parse(current)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", current, err)
	}

	v.Patch++
	if v.Patch >= rolloverLimit {
		v.Patch = 0
		v.Minor++
	}
	if v.Minor >= rolloverLimit {
		v.Minor = 0
		v.Major++
	}
	return v.String(), nil
}

// Less reports whether version a precedes version b in semver order.
// Unparseable input sorts first.
func Less(a, b string) bool {
	va, errA := semver.Parse(a)
	vb, errB := semver.Parse(b)
	if errA != nil || errB != nil {
		return errA != nil && errB == nil
	}
	return va.LT(vb)
}
