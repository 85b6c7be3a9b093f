package models

import "time"

// ExportFormatVersion is the current ProjectExport wire format version.
const ExportFormatVersion = "1"

// ProjectExport is a JSON-serializable capture of a whole project for
// backup or cross-account migration.
type ProjectExport struct {
	Version             string            `json:"version"`
	ExportedAt          time.Time         `json:"exported_at"`
	ExportedBy          string            `json:"exported_by,omitempty"`
	Project             *Project          `json:"project"`
	Versions            []*ProjectVersion `json:"versions"`
	Branches            []*ProjectBranch  `json:"branches"`
	IncludeHistory      bool              `json:"include_history"`
	IncludeAnalytics    bool              `json:"include_analytics"`
	IncludeIntegrations bool              `json:"include_integrations"`
}

// ExportOptions selects what an export carries. Disabled sections are
// redacted or truncated, never silently included.
type ExportOptions struct {
	ExportedBy          string `json:"exported_by,omitempty"`
	IncludeHistory      bool   `json:"include_history"`
	IncludeAnalytics    bool   `json:"include_analytics"`
	IncludeIntegrations bool   `json:"include_integrations"`
}

// ImportOptions controls how an export is replayed into a fresh project.
type ImportOptions struct {
	NewName               string `json:"new_name,omitempty"`
	NewOwnerID            string `json:"new_owner_id,omitempty"`
	PreserveCollaborators bool   `json:"preserve_collaborators"`
	PreserveHistory       bool   `json:"preserve_history"`
	Source                string `json:"source,omitempty"` // tag recorded on the initial imported version
}
