package project

import (
	"time"

	"github.com/appdraft/project-engine/internal/models"
)

// CreateProjectInput holds the parameters for creating a new project.
type CreateProjectInput struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	OwnerID     string                  `json:"owner_id"`
	WorkspaceID string                  `json:"workspace_id,omitempty"`
	Type        string                  `json:"type,omitempty"`
	TechStack   []string                `json:"tech_stack,omitempty"`
	Settings    *models.ProjectSettings `json:"settings,omitempty"`
}

// UpdateProjectInput holds the parameters for updating a project. Nil
// fields are left untouched. Settings changes require the acting
// collaborator to hold the manage-settings permission.
type UpdateProjectInput struct {
	Name        *string                 `json:"name,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Settings    *models.ProjectSettings `json:"settings,omitempty"`
}

// ListProjectsFilter narrows a project listing. Zero values match all.
type ListProjectsFilter struct {
	OwnerID string `json:"owner_id,omitempty"`
	Type    string `json:"type,omitempty"`
}

// ProjectSummary is the listing view of a project: the aggregate's
// headline fields without files, history or collaborator details.
type ProjectSummary struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Type           string    `json:"type,omitempty"`
	CurrentVersion string    `json:"current_version"`
	CurrentBranch  string    `json:"current_branch"`
	Files          int       `json:"files"`
	Branches       int       `json:"branches"`
	Collaborators  int       `json:"collaborators"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateFileInput holds the parameters for creating a file.
type CreateFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UpdateFileInput holds the replacement content for a file.
type UpdateFileInput struct {
	Content string `json:"content"`
}

// CreateVersionInput holds the caller-supplied fields of a new version.
type CreateVersionInput struct {
	Summary      string   `json:"summary,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	IsRelease    bool     `json:"is_release,omitempty"`
	ReleaseNotes string   `json:"release_notes,omitempty"`
}

// CreateBranchInput holds the parameters for creating a branch. An empty
// BaseBranch starts the branch from the project's current branch.
type CreateBranchInput struct {
	Name       string `json:"name"`
	BaseBranch string `json:"base_branch,omitempty"`
}

// AddCollaboratorInput holds the parameters for adding a collaborator.
type AddCollaboratorInput struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

func summarize(p *models.Project) *ProjectSummary {
	return &ProjectSummary{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		Name:           p.Name,
		Description:    p.Description,
		Type:           p.Type,
		CurrentVersion: p.CurrentVersion,
		CurrentBranch:  p.CurrentBranch,
		Files:          len(p.Files),
		Branches:       len(p.Branches),
		Collaborators:  len(p.Collaborators),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
