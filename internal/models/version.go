package models

import "time"

// Change types reported in a version's change set.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

// ProjectVersion is one immutable entry of project history: the snapshot at
// creation time plus the change set since the prior version. Full records
// are persisted as their own blobs; the aggregate carries only VersionRefs.
type ProjectVersion struct {
	ID           string           `json:"id"`
	ProjectID    string           `json:"project_id"`
	Version      string           `json:"version"` // semver string
	Snapshot     *ProjectSnapshot `json:"snapshot,omitempty"`
	Changes      []*FileChange    `json:"changes,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	Tags         []string         `json:"tags,omitempty"`
	IsRelease    bool             `json:"is_release,omitempty"`
	ReleaseNotes string           `json:"release_notes,omitempty"`
}

// Ref returns the lightweight reference stored in the project aggregate.
func (v *ProjectVersion) Ref() *VersionRef {
	return &VersionRef{
		ID:        v.ID,
		Version:   v.Version,
		Summary:   v.Summary,
		CreatedBy: v.CreatedBy,
		CreatedAt: v.CreatedAt,
		IsRelease: v.IsRelease,
	}
}

// VersionRef points at a persisted ProjectVersion blob without carrying
// its snapshot or change set.
type VersionRef struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Summary   string    `json:"summary,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	IsRelease bool      `json:"is_release,omitempty"`
}

// FileChange describes how one path changed between two revisions.
type FileChange struct {
	Type string    `json:"type"` // added | modified | deleted
	Path string    `json:"path"`
	Diff *FileDiff `json:"diff,omitempty"` // populated for modified files
}

// FileDiff is a line-level change description for a single file.
type FileDiff struct {
	Path      string     `json:"path"`
	Hunks     []DiffHunk `json:"hunks"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// DiffHunk groups a contiguous run of changed lines with its position in
// the old and new content.
type DiffHunk struct {
	OldStart int        `json:"old_start"`
	OldLines int        `json:"old_lines"`
	NewStart int        `json:"new_start"`
	NewLines int        `json:"new_lines"`
	Lines    []DiffLine `json:"lines"`
}

// Line kinds inside a diff hunk.
const (
	LineContext = "context"
	LineAdd     = "add"
	LineDelete  = "delete"
)

// DiffLine is a single line of a hunk with its old/new line numbers.
// A zero line number means the line does not exist on that side.
type DiffLine struct {
	Kind      string `json:"kind"`
	OldNumber int    `json:"old_number,omitempty"`
	NewNumber int    `json:"new_number,omitempty"`
	Text      string `json:"text"`
}
