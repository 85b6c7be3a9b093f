package models

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

// Lifecycle events emitted by the project store. One event per externally
// visible state transition.
const (
	EventProjectCreated      EventType = "project_created"
	EventProjectUpdated      EventType = "project_updated"
	EventProjectDeleted      EventType = "project_deleted"
	EventFileCreated         EventType = "file_created"
	EventFileUpdated         EventType = "file_updated"
	EventFileDeleted         EventType = "file_deleted"
	EventVersionCreated      EventType = "version_created"
	EventBranchCreated       EventType = "branch_created"
	EventBranchMerged        EventType = "branch_merged"
	EventCollaboratorAdded   EventType = "collaborator_added"
	EventCollaboratorRemoved EventType = "collaborator_removed"
)

// Event is one lifecycle notification delivered to subscribers of the
// in-process event bus.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	ProjectID string            `json:"project_id"`
	Actor     string            `json:"actor,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload,omitempty"`
}
