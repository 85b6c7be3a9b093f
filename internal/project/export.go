package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appdraft/project-engine/internal/branch"
	"github.com/appdraft/project-engine/internal/contenthash"
	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/storage"
	"github.com/appdraft/project-engine/internal/versioning"
)

// Export captures the whole project as a portable document. Sections
// excluded by the options are redacted, never silently included: without
// integrations the map is dropped, without analytics the counters are
// zeroed, without history the version list is empty.
func (s *Store) Export(ctx context.Context, projectID string, opts models.ExportOptions) (*models.ProjectExport, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}

	p, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}
	if !opts.IncludeIntegrations {
		p.Integrations = nil
	}
	if !opts.IncludeAnalytics {
		p.Analytics = models.ProjectAnalytics{}
	}

	var versions []*models.ProjectVersion
	if opts.IncludeHistory {
		versions, err = s.versions.List(ctx, e.project)
		if err != nil {
			return nil, err
		}
	} else {
		p.Versions = nil
	}

	exp := &models.ProjectExport{
		Version:             models.ExportFormatVersion,
		ExportedAt:          time.Now().UTC(),
		ExportedBy:          opts.ExportedBy,
		Project:             p,
		Versions:            versions,
		Branches:            p.Branches,
		IncludeHistory:      opts.IncludeHistory,
		IncludeAnalytics:    opts.IncludeAnalytics,
		IncludeIntegrations: opts.IncludeIntegrations,
	}

	s.logger.Info().
		Str("project_id", projectID).
		Bool("history", opts.IncludeHistory).
		Int("files", len(p.Files)).
		Msg("Project exported")
	return exp, nil
}

// Import replays an export into a fresh project: new id and timestamps,
// optional rename and owner change, collaborators and history preserved
// per the options. The result always gains a fresh version tagged with
// the import source, recording the imported state in its own history.
func (s *Store) Import(ctx context.Context, exp *models.ProjectExport, opts models.ImportOptions) (*models.Project, error) {
	if exp == nil || exp.Project == nil {
		return nil, fmt.Errorf("export payload has no project: %w", perrors.ErrInvalidOperation)
	}

	owner := opts.NewOwnerID
	if owner == "" {
		owner = exp.Project.OwnerID
	}
	if owner == "" {
		return nil, fmt.Errorf("imported project has no owner: %w", perrors.ErrInvalidOperation)
	}
	name := opts.NewName
	if name == "" {
		name = exp.Project.Name
	}
	if name == "" {
		return nil, fmt.Errorf("imported project has no name: %w", perrors.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	p := &models.Project{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		WorkspaceID:  exp.Project.WorkspaceID,
		Name:         name,
		Description:  exp.Project.Description,
		Type:         exp.Project.Type,
		TechStack:    append([]string(nil), exp.Project.TechStack...),
		Files:        make([]*models.ProjectFile, 0, len(exp.Project.Files)),
		Settings:     exp.Project.Settings,
		Integrations: copyStringMap(exp.Project.Integrations),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Files get fresh identities; hash and size are recomputed from the
	// carried content rather than trusted, and edit locks do not travel.
	for _, f := range exp.Project.Files {
		fileName, ext := models.SplitPath(f.Path)
		p.Files = append(p.Files, &models.ProjectFile{
			ID:           uuid.NewString(),
			Path:         f.Path,
			Name:         fileName,
			Extension:    ext,
			Content:      f.Content,
			Size:         int64(len(f.Content)),
			Hash:         contenthash.Sum(f.Content),
			Version:      f.Version,
			LastModified: f.LastModified,
		})
	}
	rebuildDirectories(p)

	if _, err := s.collabs.Add(p, owner, models.RoleOwner, owner); err != nil {
		return nil, err
	}
	if opts.PreserveCollaborators {
		for _, c := range exp.Project.Collaborators {
			if c.Role == models.RoleOwner || c.UserID == owner {
				continue
			}
			nc, err := s.collabs.Add(p, c.UserID, c.Role, c.AddedBy)
			if err != nil {
				s.logger.Warn().Err(err).Str("user_id", c.UserID).Msg("Skipping collaborator from export")
				continue
			}
			nc.AddedAt = c.AddedAt
		}
	}

	if opts.PreserveHistory {
		if err := s.importHistory(ctx, p, exp); err != nil {
			s.cleanupFailedCreate(p.ID)
			return nil, err
		}
	}
	if err := s.importBranches(ctx, p, exp, owner); err != nil {
		s.cleanupFailedCreate(p.ID)
		return nil, err
	}

	source := opts.Source
	if source == "" {
		source = "import"
	}
	summary := "Imported project"
	if opts.Source != "" {
		summary = fmt.Sprintf("Imported from %s", opts.Source)
	}
	v, err := s.versions.Create(ctx, p, versioning.CreateOptions{
		Summary:   summary,
		CreatedBy: owner,
		Tags:      []string{"import", source},
	})
	if err != nil {
		s.cleanupFailedCreate(p.ID)
		return nil, err
	}
	if cur := p.Branch(p.CurrentBranch); cur != nil {
		cur.CurrentVersion = v.Version
		if cur.BaseVersion == "" {
			cur.BaseVersion = v.Version
		}
	}

	if err := s.persistFiles(ctx, p); err != nil {
		s.cleanupFailedCreate(p.ID)
		return nil, err
	}
	if err := s.persist(ctx, p); err != nil {
		s.cleanupFailedCreate(p.ID)
		return nil, err
	}

	lock := s.lockFor(p.ID)
	lock.Lock()
	s.insert(&cacheEntry{project: p})
	lock.Unlock()

	s.logger.Info().
		Str("project_id", p.ID).
		Str("source", source).
		Int("files", len(p.Files)).
		Msg("Project imported")
	s.publish(models.EventProjectCreated, p.ID, owner, map[string]string{
		"name":   p.Name,
		"source": source,
	})
	return cloneProject(p)
}

// importBranches carries the exported branch records over with fresh ids,
// or bootstraps a default branch when the export has none. Branch head
// snapshots are not part of the export format, so switching to a carried
// branch before it sees a checkpoint leaves the live files in place.
func (s *Store) importBranches(ctx context.Context, p *models.Project, exp *models.ProjectExport, owner string) error {
	if len(exp.Branches) == 0 {
		_, err := s.branches.CreateDefault(ctx, p, branch.DefaultBranchName, owner)
		return err
	}

	for _, b := range exp.Branches {
		if p.Branch(b.Name) != nil {
			s.logger.Warn().Str("branch", b.Name).Msg("Skipping duplicate branch from export")
			continue
		}
		bc := *b
		bc.ID = uuid.NewString()
		p.Branches = append(p.Branches, &bc)
	}
	if len(p.Branches) == 0 {
		_, err := s.branches.CreateDefault(ctx, p, branch.DefaultBranchName, owner)
		return err
	}

	if p.DefaultBranch() == nil {
		p.Branches[0].IsDefault = true
	}
	cur := exp.Project.CurrentBranch
	if p.Branch(cur) == nil {
		cur = p.DefaultBranch().Name
	}
	p.CurrentBranch = cur
	return nil
}

// importHistory re-persists the exported version records under the new
// project id and carries the version counter forward.
func (s *Store) importHistory(ctx context.Context, p *models.Project, exp *models.ProjectExport) error {
	for _, v := range exp.Versions {
		vc := *v
		vc.ProjectID = p.ID
		data, err := json.Marshal(&vc)
		if err != nil {
			return fmt.Errorf("failed to encode version %s: %w", vc.ID, err)
		}
		if err := s.adapter.Save(ctx, storage.VersionKey(p.ID, vc.ID), data); err != nil {
			return err
		}
		p.Versions = append(p.Versions, vc.Ref())
	}
	if exp.Project.CurrentVersion != "" {
		p.CurrentVersion = exp.Project.CurrentVersion
	}
	return nil
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
