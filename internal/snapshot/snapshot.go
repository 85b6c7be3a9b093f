// Package snapshot materializes immutable point-in-time captures of a
// project's file set, and restores a project from such a capture.
package snapshot

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/appdraft/project-engine/internal/models"
)

// Engine builds and restores project snapshots.
type Engine struct{}

// NewEngine creates a snapshot engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Capture returns a deep, independent copy of the project's current files
// keyed by path, plus the directory tree derived from those paths.
// Mutating the project afterwards never alters a returned snapshot.
func (e *Engine) Capture(p *models.Project) *models.ProjectSnapshot {
	files := make(map[string]models.FileSnapshot, len(p.Files))
	for _, f := range p.Files {
		files[f.Path] = models.FileSnapshot{
			Content: f.Content,
			Hash:    f.Hash,
			Size:    f.Size,
		}
	}
	return &models.ProjectSnapshot{
		Files:     files,
		Structure: BuildTree(p.Files),
		TakenAt:   time.Now().UTC(),
	}
}

// Restore replaces the project's live file set with the snapshot's
// contents. Ids, per-file version counters and lock flags survive for
// paths that still exist; paths new to the project get fresh ids.
func (e *Engine) Restore(p *models.Project, snap *models.ProjectSnapshot) {
	now := time.Now().UTC()
	existing := make(map[string]*models.ProjectFile, len(p.Files))
	for _, f := range p.Files {
		existing[f.Path] = f
	}

	files := make([]*models.ProjectFile, 0, len(snap.Files))
	for _, filePath := range snap.Paths() {
		fs := snap.Files[filePath]
		name, ext := models.SplitPath(filePath)
		f := &models.ProjectFile{
			ID:           uuid.NewString(),
			Path:         filePath,
			Name:         name,
			Extension:    ext,
			Content:      fs.Content,
			Size:         fs.Size,
			Hash:         fs.Hash,
			Version:      1,
			LastModified: now,
		}
		if prev, ok := existing[filePath]; ok {
			f.ID = prev.ID
			f.Version = prev.Version
			f.Locked = prev.Locked
			if prev.Hash == fs.Hash {
				f.LastModified = prev.LastModified
			}
		}
		files = append(files, f)
	}

	p.Files = files
	p.Directories = DirectoryPaths(BuildTree(files))
}

// Compose builds a snapshot from an already assembled path keyed file map,
// for callers that merge file sets without live ProjectFile records. The
// directory tree is derived from the paths alone, so its file leaves carry
// no file ids.
func (e *Engine) Compose(files map[string]models.FileSnapshot) *models.ProjectSnapshot {
	copied := make(map[string]models.FileSnapshot, len(files))
	transient := make([]*models.ProjectFile, 0, len(files))
	for filePath, fs := range files {
		copied[filePath] = fs
		transient = append(transient, &models.ProjectFile{Path: filePath})
	}
	return &models.ProjectSnapshot{
		Files:     copied,
		Structure: BuildTree(transient),
		TakenAt:   time.Now().UTC(),
	}
}

// BuildTree builds the hierarchical directory tree for a file list.
// Paths split on "/"; intermediate directories are materialized once;
// file leaves reference the originating file id. Children are sorted by
// name so identical file sets always yield identical trees.
func BuildTree(files []*models.ProjectFile) *models.DirectoryNode {
	root := &models.DirectoryNode{Name: "/", Path: "", Type: models.NodeDirectory}
	for _, f := range files {
		parts := strings.Split(f.Path, "/")
		cur := root
		for i, part := range parts {
			if part == "" {
				continue
			}
			if i == len(parts)-1 {
				if cur.Child(part) == nil {
					cur.Children = append(cur.Children, &models.DirectoryNode{
						Name:   part,
						Path:   f.Path,
						Type:   models.NodeFile,
						FileID: f.ID,
					})
				}
				continue
			}
			next := cur.Child(part)
			if next == nil {
				next = &models.DirectoryNode{
					Name: part,
					Path: strings.Join(parts[:i+1], "/"),
					Type: models.NodeDirectory,
				}
				cur.Children = append(cur.Children, next)
			}
			cur = next
		}
	}
	root.SortChildren()
	return root
}

// DirectoryPaths returns the sorted paths of every directory node in the
// tree, root excluded.
func DirectoryPaths(root *models.DirectoryNode) []string {
	var paths []string
	var walk func(n *models.DirectoryNode)
	walk = func(n *models.DirectoryNode) {
		for _, c := range n.Children {
			if c.Type == models.NodeDirectory {
				paths = append(paths, c.Path)
				walk(c)
			}
		}
	}
	walk(root)
	return paths
}
