// Package errors provides structured error types for the project engine.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy.
var (
	// ErrNotFound signals an absent project, file, branch or version.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists signals a duplicate branch name, file path or collaborator.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidOperation signals a request that violates an invariant,
	// such as removing the owner or deleting the default branch.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrProtectedBranch signals a merge into a protected branch by an
	// actor without merge rights.
	ErrProtectedBranch = errors.New("protected branch")

	// ErrMergeConflict signals divergent file content between two branches.
	// Merge conflicts normally travel in a BranchMerge result rather than
	// as an error; the sentinel exists for transport-layer mapping.
	ErrMergeConflict = errors.New("merge conflict")
)

// StorageError represents a failure at the storage adapter boundary.
type StorageError struct {
	Backend    string // "memory", "sqlite", "remote"
	Op         string // "save", "load", "delete", "list", "metadata"
	Path       string
	StatusCode int // HTTP status for the remote backend, 0 otherwise
	Err        error
}

func (e *StorageError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s storage: %s %q failed (status %d): %v", e.Backend, e.Op, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s storage: %s %q failed: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError creates a storage error for the given backend operation.
func NewStorageError(backend, op, path string, err error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Path: path, Err: err}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
// Only storage failures qualify; taxonomy errors indicate logic or state
// problems and must not be retried blindly.
func IsRetryable(err error) bool {
	var se *StorageError
	if !errors.As(err, &se) {
		return false
	}
	if errors.Is(se.Err, ErrNotFound) || errors.Is(se.Err, ErrAlreadyExists) {
		return false
	}
	switch se.StatusCode {
	case 0, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
