// Package models defines the domain records shared across the project
// engine: projects, files, snapshots, versions, branches, collaborators
// and lifecycle events.
package models

import (
	"path"
	"strings"
	"time"
)

// Project is the aggregate root for one generated application.
type Project struct {
	ID             string            `json:"id"`
	OwnerID        string            `json:"owner_id"`
	WorkspaceID    string            `json:"workspace_id,omitempty"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Type           string            `json:"type,omitempty"`       // e.g. "web", "mobile", "api"
	TechStack      []string          `json:"tech_stack,omitempty"` // e.g. ["react", "node"]
	Files          []*ProjectFile    `json:"files"`
	Directories    []string          `json:"directories,omitempty"`
	CurrentVersion string            `json:"current_version"`
	Versions       []*VersionRef     `json:"versions,omitempty"`
	Branches       []*ProjectBranch  `json:"branches"`
	CurrentBranch  string            `json:"current_branch"`
	Collaborators  []*Collaborator   `json:"collaborators"`
	Settings       ProjectSettings   `json:"settings"`
	Analytics      ProjectAnalytics  `json:"analytics"`
	Integrations   map[string]string `json:"integrations,omitempty"` // opaque to the core
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ProjectSettings holds per-project behavior knobs. Extra is opaque to the
// core and carried verbatim for the surrounding product.
type ProjectSettings struct {
	AutoSave            bool           `json:"auto_save"`
	AutoSaveIntervalSec int            `json:"auto_save_interval_sec"`
	Extra               map[string]any `json:"extra,omitempty"`
}

// ProjectAnalytics carries usage counters. The core only zeroes them on
// redacted export; the product's metering layer owns their meaning.
type ProjectAnalytics struct {
	Edits        int64     `json:"edits"`
	Builds       int64     `json:"builds"`
	Deploys      int64     `json:"deploys"`
	LastActivity time.Time `json:"last_activity"`
}

// ProjectFile is one file of the generated source tree. Content is held
// in memory but persisted as its own blob; the aggregate document carries
// only the metadata fields.
type ProjectFile struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"` // unique within a project
	Name         string    `json:"name"`
	Extension    string    `json:"extension,omitempty"`
	Content      string    `json:"content,omitempty"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash"` // content address of Content
	Version      int       `json:"version"`
	LastModified time.Time `json:"last_modified"`
	Locked       bool      `json:"locked,omitempty"`
}

// SplitPath returns the base name and extension for a file path.
// The extension is returned without the leading dot.
func SplitPath(filePath string) (name, ext string) {
	name = path.Base(filePath)
	ext = strings.TrimPrefix(path.Ext(name), ".")
	return name, ext
}

// FileByPath returns the file with the given path, or nil.
func (p *Project) FileByPath(filePath string) *ProjectFile {
	for _, f := range p.Files {
		if f.Path == filePath {
			return f
		}
	}
	return nil
}

// Branch returns the branch with the given name, or nil.
func (p *Project) Branch(name string) *ProjectBranch {
	for _, b := range p.Branches {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// DefaultBranch returns the branch flagged as default, or nil.
func (p *Project) DefaultBranch() *ProjectBranch {
	for _, b := range p.Branches {
		if b.IsDefault {
			return b
		}
	}
	return nil
}

// Collaborator returns the collaborator entry for userID, or nil.
func (p *Project) Collaborator(userID string) *Collaborator {
	for _, c := range p.Collaborators {
		if c.UserID == userID {
			return c
		}
	}
	return nil
}

// Owner returns the collaborator holding the owner role, or nil.
func (p *Project) Owner() *Collaborator {
	for _, c := range p.Collaborators {
		if c.Role == RoleOwner {
			return c
		}
	}
	return nil
}

// LatestVersion returns the most recently appended version ref, or nil.
func (p *Project) LatestVersion() *VersionRef {
	if len(p.Versions) == 0 {
		return nil
	}
	return p.Versions[len(p.Versions)-1]
}

// VersionRefByID returns the version ref with the given id, or nil.
func (p *Project) VersionRefByID(id string) *VersionRef {
	for _, v := range p.Versions {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// Touch bumps the aggregate's UpdatedAt.
func (p *Project) Touch(now time.Time) {
	p.UpdatedAt = now
}
