package project

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/appdraft/project-engine/internal/contenthash"
	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/snapshot"
	"github.com/appdraft/project-engine/internal/storage"
)

// CreateFile adds a file to the working set. Paths are unique within a
// project; the content blob is written before the aggregate document.
func (s *Store) CreateFile(ctx context.Context, projectID, actor string, input CreateFileInput) (*models.ProjectFile, error) {
	if input.Path == "" {
		return nil, fmt.Errorf("file path must not be empty: %w", perrors.ErrInvalidOperation)
	}

	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if e.project.FileByPath(input.Path) != nil {
		return nil, fmt.Errorf("file %s: %w", input.Path, perrors.ErrAlreadyExists)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	name, ext := models.SplitPath(input.Path)
	f := &models.ProjectFile{
		ID:           uuid.NewString(),
		Path:         input.Path,
		Name:         name,
		Extension:    ext,
		Content:      input.Content,
		Size:         int64(len(input.Content)),
		Hash:         contenthash.Sum(input.Content),
		Version:      1,
		LastModified: time.Now().UTC(),
	}
	e.project.Files = append(e.project.Files, f)
	rebuildDirectories(e.project)
	e.project.Touch(f.LastModified)

	if err := s.persistFile(ctx, e.project, f); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("path", f.Path).
		Msg("File created")
	s.publish(models.EventFileCreated, projectID, actor, map[string]string{"path": f.Path})
	return copyFile(f), nil
}

// GetFile returns a copy of one file from the working set.
func (s *Store) GetFile(ctx context.Context, projectID, filePath string) (*models.ProjectFile, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	f := e.project.FileByPath(filePath)
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", filePath, perrors.ErrNotFound)
	}
	return copyFile(f), nil
}

// UpdateFile replaces a file's content, bumping its per-file version and
// rehashing. Locked files refuse the update.
func (s *Store) UpdateFile(ctx context.Context, projectID, filePath, actor string, input UpdateFileInput) (*models.ProjectFile, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	f := e.project.FileByPath(filePath)
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", filePath, perrors.ErrNotFound)
	}
	if f.Locked {
		return nil, fmt.Errorf("file %s is locked: %w", filePath, perrors.ErrInvalidOperation)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	f.Content = input.Content
	f.Size = int64(len(input.Content))
	f.Hash = contenthash.Sum(input.Content)
	f.Version++
	f.LastModified = time.Now().UTC()
	e.project.Touch(f.LastModified)

	if err := s.persistFile(ctx, e.project, f); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}
	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, true)
		return nil, err
	}

	s.publish(models.EventFileUpdated, projectID, actor, map[string]string{"path": f.Path})
	return copyFile(f), nil
}

// DeleteFile removes a file from the working set. The aggregate is
// persisted before the content blob is deleted so a cold load never finds
// a referenced blob missing.
func (s *Store) DeleteFile(ctx context.Context, projectID, filePath, actor string) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return err
	}
	f := e.project.FileByPath(filePath)
	if f == nil {
		return fmt.Errorf("file %s: %w", filePath, perrors.ErrNotFound)
	}
	if f.Locked {
		return fmt.Errorf("file %s is locked: %w", filePath, perrors.ErrInvalidOperation)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return err
	}

	for i, entry := range e.project.Files {
		if entry.Path == filePath {
			e.project.Files = append(e.project.Files[:i], e.project.Files[i+1:]...)
			break
		}
	}
	rebuildDirectories(e.project)
	e.project.Touch(time.Now().UTC())

	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return err
	}
	if err := s.adapter.Delete(ctx, storage.FileKey(projectID, f.ID)); err != nil {
		s.logger.Warn().Err(err).Str("path", filePath).Msg("Failed to delete file blob")
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("path", filePath).
		Msg("File deleted")
	s.publish(models.EventFileDeleted, projectID, actor, map[string]string{"path": filePath})
	return nil
}

// SetFileLock flags a file as locked or unlocked. Locked files refuse
// update and delete until released.
func (s *Store) SetFileLock(ctx context.Context, projectID, filePath, actor string, locked bool) (*models.ProjectFile, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	f := e.project.FileByPath(filePath)
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", filePath, perrors.ErrNotFound)
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	f.Locked = locked
	e.project.Touch(time.Now().UTC())

	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}

	s.publish(models.EventFileUpdated, projectID, actor, map[string]string{
		"path":   filePath,
		"locked": strconv.FormatBool(locked),
	})
	return copyFile(f), nil
}

func copyFile(f *models.ProjectFile) *models.ProjectFile {
	c := *f
	return &c
}

func rebuildDirectories(p *models.Project) {
	p.Directories = snapshot.DirectoryPaths(snapshot.BuildTree(p.Files))
}
