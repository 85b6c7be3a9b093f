package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	perrors "github.com/appdraft/project-engine/internal/errors"
)

const memoryBackend = "memory"

// MemoryAdapter is a map-backed adapter for tests and ephemeral use.
// Nothing survives process exit.
type MemoryAdapter struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data       []byte
	modifiedAt time.Time
}

// NewMemoryAdapter creates an in-memory adapter. Test/ephemeral use only.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{objects: make(map[string]memoryObject)}
}

func (m *MemoryAdapter) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return perrors.NewStorageError(memoryBackend, "save", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = memoryObject{
		data:       append([]byte(nil), data...),
		modifiedAt: time.Now().UTC(),
	}
	return nil
}

func (m *MemoryAdapter) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, perrors.NewStorageError(memoryBackend, "load", path, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, perrors.NewStorageError(memoryBackend, "load", path, perrors.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryAdapter) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return perrors.NewStorageError(memoryBackend, "delete", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *MemoryAdapter) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, perrors.NewStorageError(memoryBackend, "exists", path, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *MemoryAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, perrors.NewStorageError(memoryBackend, "list", prefix, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryAdapter) Metadata(ctx context.Context, path string) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, perrors.NewStorageError(memoryBackend, "metadata", path, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return ObjectInfo{}, perrors.NewStorageError(memoryBackend, "metadata", path, perrors.ErrNotFound)
	}
	return ObjectInfo{Size: int64(len(obj.data)), ModifiedAt: obj.modifiedAt}, nil
}

// Len returns the number of stored objects. Test helper.
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
