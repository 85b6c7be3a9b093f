package models

import "time"

// Branch lifecycle states. A branch moves active → merged exactly once and
// never reopens.
const (
	BranchActive = "active"
	BranchMerged = "merged"
)

// ProjectBranch is a named, independently evolving line of file history.
type ProjectBranch struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"` // unique within the project
	BaseBranch     string    `json:"base_branch,omitempty"`
	BaseVersion    string    `json:"base_version"`
	CurrentVersion string    `json:"current_version"`
	IsDefault      bool      `json:"is_default"`
	IsProtected    bool      `json:"is_protected"`
	Status         string    `json:"status"` // active | merged
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Merge result states.
const (
	MergePending    = "pending"
	MergeConflicted = "conflicted"
	MergeCompleted  = "merged"
)

// BranchMerge is the ephemeral result of a merge attempt. A conflicted
// result is a normal outcome, not a dead end: the caller resolves the
// listed conflicts and may re-invoke the merge.
type BranchMerge struct {
	ID           string          `json:"id"`
	SourceBranch string          `json:"source_branch"`
	TargetBranch string          `json:"target_branch"`
	Status       string          `json:"status"` // pending | conflicted | merged
	Conflicts    []MergeConflict `json:"conflicts,omitempty"`
	MergedAt     time.Time       `json:"merged_at,omitempty"`
	MergedBy     string          `json:"merged_by,omitempty"`
}

// Conflict kinds. Content is the only kind the engine produces today.
const (
	ConflictContent = "content"
)

// MergeConflict reports one path whose content diverged between the two
// branches being merged. It is produced for the caller to resolve and is
// never persisted as authoritative state.
type MergeConflict struct {
	Path          string `json:"path"`
	Type          string `json:"type"`
	SourceContent string `json:"source_content"`
	TargetContent string `json:"target_content"`
}
