package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	perrors "github.com/appdraft/project-engine/internal/errors"
)

const sqliteBackend = "sqlite"

// SQLiteAdapter stores objects as rows in a single SQLite table. It is the
// default backend for single-node deployments: durable, zero-dependency,
// and fast enough for project blobs.
type SQLiteAdapter struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewSQLiteAdapter opens (or creates) the database at dbPath and runs
// migrations. Use ":memory:" for an ephemeral database in tests.
func NewSQLiteAdapter(dbPath string, logger zerolog.Logger) (*SQLiteAdapter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &SQLiteAdapter{
		db:     db,
		logger: logger,
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("SQLite storage initialized")
	return a, nil
}

func (a *SQLiteAdapter) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		path TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		size INTEGER NOT NULL,
		modified_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_objects_modified ON objects(modified_at);
	`

	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create objects table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (a *SQLiteAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Save writes data under path, replacing any previous object.
func (a *SQLiteAdapter) Save(ctx context.Context, path string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	query := `
	INSERT OR REPLACE INTO objects (path, data, size, modified_at)
	VALUES (?, ?, ?, ?)
	`

	_, err := a.db.ExecContext(ctx, query, path, data, len(data), time.Now().UnixMilli())
	if err != nil {
		return perrors.NewStorageError(sqliteBackend, "save", path, err)
	}
	return nil
}

// Load reads the object at path.
func (a *SQLiteAdapter) Load(ctx context.Context, path string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var data []byte
	err := a.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE path = ?`, path).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, perrors.NewStorageError(sqliteBackend, "load", path, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, perrors.NewStorageError(sqliteBackend, "load", path, err)
	}
	return data, nil
}

// Delete removes the object at path. Deleting a missing object is not an error.
func (a *SQLiteAdapter) Delete(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.ExecContext(ctx, `DELETE FROM objects WHERE path = ?`, path)
	if err != nil {
		return perrors.NewStorageError(sqliteBackend, "delete", path, err)
	}
	return nil
}

// Exists reports whether an object is stored at path.
func (a *SQLiteAdapter) Exists(ctx context.Context, path string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var one int
	err := a.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE path = ?`, path).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, perrors.NewStorageError(sqliteBackend, "exists", path, err)
	}
	return true, nil
}

// List returns the paths of all objects under prefix, sorted.
func (a *SQLiteAdapter) List(ctx context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	// LIKE with escaped wildcards keeps prefixes containing % or _ literal.
	pattern := escapeLike(prefix) + "%"
	rows, err := a.db.QueryContext(ctx,
		`SELECT path FROM objects WHERE path LIKE ? ESCAPE '\' ORDER BY path`, pattern)
	if err != nil {
		return nil, perrors.NewStorageError(sqliteBackend, "list", prefix, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, perrors.NewStorageError(sqliteBackend, "list", prefix, err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewStorageError(sqliteBackend, "list", prefix, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Metadata returns size and modification time for the object at path.
func (a *SQLiteAdapter) Metadata(ctx context.Context, path string) (ObjectInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var size, modified int64
	err := a.db.QueryRowContext(ctx,
		`SELECT size, modified_at FROM objects WHERE path = ?`, path).Scan(&size, &modified)
	if err == sql.ErrNoRows {
		return ObjectInfo{}, perrors.NewStorageError(sqliteBackend, "metadata", path, perrors.ErrNotFound)
	}
	if err != nil {
		return ObjectInfo{}, perrors.NewStorageError(sqliteBackend, "metadata", path, err)
	}

	return ObjectInfo{
		Size:       size,
		ModifiedAt: time.UnixMilli(modified).UTC(),
	}, nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
