package storage

import "fmt"

// Blob layout. Everything belonging to a project lives under one prefix so
// project deletion is a single prefix sweep.
//
//	projects/{id}/project.json                     the aggregate document (no file content)
//	projects/{id}/files/{fileID}                   raw file content
//	projects/{id}/versions/{versionID}.json        full version records
//	projects/{id}/branches/{branchID}.json         last persisted branch snapshot
//	projects/{id}/branches/{branchID}.base.json    immutable branch-point snapshot

// ProjectPrefix is the key prefix holding every blob of one project.
func ProjectPrefix(projectID string) string {
	return fmt.Sprintf("projects/%s/", projectID)
}

// ProjectKey is the key of the project aggregate document.
func ProjectKey(projectID string) string {
	return fmt.Sprintf("projects/%s/project.json", projectID)
}

// FileKey is the key of one file's raw content blob.
func FileKey(projectID, fileID string) string {
	return fmt.Sprintf("projects/%s/files/%s", projectID, fileID)
}

// VersionKey is the key of one full version record.
func VersionKey(projectID, versionID string) string {
	return fmt.Sprintf("projects/%s/versions/%s.json", projectID, versionID)
}

// BranchSnapshotKey is the key of a branch's last persisted snapshot.
func BranchSnapshotKey(projectID, branchID string) string {
	return fmt.Sprintf("projects/%s/branches/%s.json", projectID, branchID)
}

// BranchBaseKey is the key of the snapshot a branch was created from. It
// is written once at branch creation and never updated; merges consult it
// to tell fast-forwardable targets from diverged ones.
func BranchBaseKey(projectID, branchID string) string {
	return fmt.Sprintf("projects/%s/branches/%s.base.json", projectID, branchID)
}
