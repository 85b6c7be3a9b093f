// Package storage provides the byte-oriented persistence abstraction the
// project engine is built on, with interchangeable in-memory, SQLite and
// remote object-storage backends.
package storage

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object without loading its bytes.
type ObjectInfo struct {
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Adapter is the persistence contract. All mutation methods are durable on
// return; there is no deferred flush. Implementations must honor the
// caller's context deadline and surface failures as *errors.StorageError,
// wrapping errors.ErrNotFound when an object is absent.
type Adapter interface {
	// Save stores data under path, replacing any existing object.
	Save(ctx context.Context, path string, data []byte) error

	// Load returns the object's bytes, or a storage error wrapping
	// ErrNotFound when the object does not exist.
	Load(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is stored under path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all stored paths beginning with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Metadata returns size and modification time without loading bytes.
	Metadata(ctx context.Context, path string) (ObjectInfo, error)
}
