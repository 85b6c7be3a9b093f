// Package project implements the store façade over the persistence and
// versioning engine: a cached, per-project-serialized entry point for
// every externally visible operation on a project aggregate.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/appdraft/project-engine/internal/branch"
	"github.com/appdraft/project-engine/internal/collab"
	"github.com/appdraft/project-engine/internal/contenthash"
	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/event"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/snapshot"
	"github.com/appdraft/project-engine/internal/storage"
	"github.com/appdraft/project-engine/internal/versioning"
	"github.com/appdraft/project-engine/lru"
)

const (
	defaultCacheSize        = 128
	defaultAutoSaveInterval = 30 * time.Second

	// autoSaveTimeout bounds one background persist; rollbackTimeout bounds
	// the compensating writes after a failed mutation, which run on a fresh
	// context because the caller's may already be dead.
	autoSaveTimeout = 10 * time.Second
	rollbackTimeout = 10 * time.Second
)

// Config holds the store's tuning knobs.
type Config struct {
	// CacheSize is the maximum number of project aggregates kept in
	// memory. Defaults to 128.
	CacheSize int
}

// cacheEntry is one cached aggregate plus its auto-save handle.
// cancelAutoSave is only touched under Store.mu.
type cacheEntry struct {
	project        *models.Project
	cancelAutoSave context.CancelFunc
}

// Store is the façade over the persistence and versioning engine. All
// mutating operations on one project id are serialized through a
// per-project lock; operations on distinct ids run in parallel.
type Store struct {
	adapter   storage.Adapter
	snapshots *snapshot.Engine
	versions  *versioning.Manager
	branches  *branch.Manager
	collabs   *collab.Registry
	bus       *event.Bus
	logger    zerolog.Logger

	mu     sync.Mutex // guards cache, locks and closed
	cache  *lru.Cache[string, *cacheEntry]
	locks  map[string]*sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewStore creates the project store. A nil policy falls back to the
// compiled-in role table; a nil bus disables event publishing.
func NewStore(cfg Config, adapter storage.Adapter, bus *event.Bus, policy *collab.Policy, logger zerolog.Logger) *Store {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if policy == nil {
		policy = collab.DefaultPolicy()
	}
	snapshots := snapshot.NewEngine()

	return &Store{
		adapter:   adapter,
		snapshots: snapshots,
		versions:  versioning.NewManager(adapter, snapshots, logger),
		branches:  branch.NewManager(adapter, snapshots, logger),
		collabs:   collab.NewRegistry(policy, logger),
		bus:       bus,
		logger:    logger.With().Str("component", "project.store").Logger(),
		cache:     lru.New[string, *cacheEntry](cfg.CacheSize),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Close stops every auto-save goroutine and waits for them to drain.
// Cached state is already persisted; Close never writes.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	entries := s.cache.Clear()
	for _, e := range entries {
		s.stopAutoSave(e)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Project store closed")
}

// lockFor returns the exclusive lock for a project id, creating it on
// first use. Lock entries live for the store's lifetime so a waiter never
// ends up holding a lock that was swapped out from under it.
func (s *Store) lockFor(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[projectID] = l
	}
	return l
}

// entry returns the cached aggregate for a project, loading it through
// the adapter on a miss. Caller must hold the project lock.
func (s *Store) entry(ctx context.Context, projectID string) (*cacheEntry, error) {
	s.mu.Lock()
	if e, ok := s.cache.Get(projectID); ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	p, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	e := &cacheEntry{project: p}
	s.insert(e)
	return e, nil
}

// insert caches an entry, starts its auto-save and stops the ticker of
// whichever entry the insert evicted.
func (s *Store) insert(e *cacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startAutoSave(e)
	if victimID, victim, ok := s.cache.Put(e.project.ID, e); ok {
		s.stopAutoSave(victim)
		s.logger.Debug().Str("project_id", victimID).Msg("Project evicted from cache")
	}
}

func (s *Store) loadProject(ctx context.Context, projectID string) (*models.Project, error) {
	data, err := s.adapter.Load(ctx, storage.ProjectKey(projectID))
	if err != nil {
		return nil, err
	}
	var p models.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", projectID, err)
	}

	// Hydrate content from the per-file blobs. The blob is the source of
	// truth; stale metadata from an interrupted write is healed here.
	for _, f := range p.Files {
		blob, err := s.adapter.Load(ctx, storage.FileKey(projectID, f.ID))
		if err != nil {
			return nil, fmt.Errorf("failed to load content for %s: %w", f.Path, err)
		}
		f.Content = string(blob)
		if sum := contenthash.SumBytes(blob); f.Hash != sum {
			s.logger.Warn().
				Str("project_id", projectID).
				Str("path", f.Path).
				Msg("File hash out of date, recomputed from blob")
			f.Hash = sum
			f.Size = int64(len(blob))
		}
	}
	return &p, nil
}

// persist writes the aggregate document. File content travels in its own
// blobs, never inline.
func (s *Store) persist(ctx context.Context, p *models.Project) error {
	data, err := marshalAggregate(p)
	if err != nil {
		return err
	}
	return s.adapter.Save(ctx, storage.ProjectKey(p.ID), data)
}

// persistFile writes one file's content blob.
func (s *Store) persistFile(ctx context.Context, p *models.Project, f *models.ProjectFile) error {
	return s.adapter.Save(ctx, storage.FileKey(p.ID, f.ID), []byte(f.Content))
}

// persistFiles rewrites every live file blob and prunes blobs of files
// that no longer exist. Used by the bulk operations (switch, merge,
// revert, import); single-file edits write just their own blob.
func (s *Store) persistFiles(ctx context.Context, p *models.Project) error {
	live := make(map[string]struct{}, len(p.Files))
	for _, f := range p.Files {
		if err := s.persistFile(ctx, p, f); err != nil {
			return err
		}
		live[f.ID] = struct{}{}
	}

	keys, err := s.adapter.List(ctx, storage.ProjectPrefix(p.ID)+"files/")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, ok := live[path.Base(key)]; ok {
			continue
		}
		if err := s.adapter.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("path", key).Msg("Failed to prune stale file blob")
		}
	}
	return nil
}

// rollback restores the cached aggregate after a failed mutation. When
// the operation had touched file blobs it also re-persists the prior
// file set so storage converges back to the pre-operation state.
func (s *Store) rollback(e *cacheEntry, undo *models.Project, filesTouched bool) {
	e.project = undo
	if !filesTouched {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	if err := s.persistFiles(ctx, undo); err != nil {
		s.logger.Error().Err(err).Str("project_id", undo.ID).Msg("Failed to restore file blobs after rollback")
	}
}

// cloneProject deep-copies an aggregate through its JSON form.
func cloneProject(p *models.Project) (*models.Project, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to copy project %s: %w", p.ID, err)
	}
	var c models.Project
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to copy project %s: %w", p.ID, err)
	}
	return &c, nil
}

// marshalAggregate encodes the aggregate with file content stripped, so a
// single-file edit never rewrites every file body.
func marshalAggregate(p *models.Project) ([]byte, error) {
	stripped := *p
	stripped.Files = make([]*models.ProjectFile, len(p.Files))
	for i, f := range p.Files {
		fc := *f
		fc.Content = ""
		stripped.Files[i] = &fc
	}
	data, err := json.Marshal(&stripped)
	if err != nil {
		return nil, fmt.Errorf("failed to encode project %s: %w", p.ID, err)
	}
	return data, nil
}

func (s *Store) publish(t models.EventType, projectID, actor string, payload map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, projectID, actor, payload))
}

// startAutoSave launches the periodic re-persist for a cached entry.
// Caller must hold s.mu.
func (s *Store) startAutoSave(e *cacheEntry) {
	if s.closed || !e.project.Settings.AutoSave {
		return
	}
	interval := time.Duration(e.project.Settings.AutoSaveIntervalSec) * time.Second
	if interval <= 0 {
		interval = defaultAutoSaveInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancelAutoSave = cancel
	s.wg.Add(1)
	go s.autoSaveLoop(ctx, e.project.ID, interval)
}

// stopAutoSave cancels an entry's ticker. Caller must hold s.mu.
func (s *Store) stopAutoSave(e *cacheEntry) {
	if e.cancelAutoSave != nil {
		e.cancelAutoSave()
		e.cancelAutoSave = nil
	}
}

// restartAutoSave re-arms the ticker after a settings change.
func (s *Store) restartAutoSave(e *cacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAutoSave(e)
	s.startAutoSave(e)
}

func (s *Store) autoSaveLoop(ctx context.Context, projectID string, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autoSaveTick(projectID)
		}
	}
}

// autoSaveTick re-persists one cached aggregate. A tick that races a
// delete or eviction finds no cache entry and does nothing, so deleted
// state is never resurrected.
func (s *Store) autoSaveTick(projectID string) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	e, ok := s.cache.Peek(projectID)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), autoSaveTimeout)
	defer cancel()
	if err := s.persist(ctx, e.project); err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("Auto-save failed")
		return
	}
	s.logger.Debug().Str("project_id", projectID).Msg("Project auto-saved")
}

// CreateProject creates an empty project with its initial version, a
// protected default branch and the owner as first collaborator.
func (s *Store) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("project name must not be empty: %w", perrors.ErrInvalidOperation)
	}
	if input.OwnerID == "" {
		return nil, fmt.Errorf("project owner must not be empty: %w", perrors.ErrInvalidOperation)
	}

	settings := models.ProjectSettings{AutoSave: true}
	if input.Settings != nil {
		settings = *input.Settings
	}

	now := time.Now().UTC()
	p := &models.Project{
		ID:             uuid.NewString(),
		OwnerID:        input.OwnerID,
		WorkspaceID:    input.WorkspaceID,
		Name:           input.Name,
		Description:    input.Description,
		Type:           input.Type,
		TechStack:      input.TechStack,
		Files:          []*models.ProjectFile{},
		CurrentVersion: versioning.InitialVersion,
		Settings:       settings,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.collabs.Add(p, input.OwnerID, models.RoleOwner, input.OwnerID); err != nil {
		return nil, err
	}
	if _, err := s.branches.CreateDefault(ctx, p, branch.DefaultBranchName, input.OwnerID); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, p); err != nil {
		s.cleanupFailedCreate(p.ID)
		return nil, err
	}

	lock := s.lockFor(p.ID)
	lock.Lock()
	s.insert(&cacheEntry{project: p})
	lock.Unlock()

	s.logger.Info().
		Str("project_id", p.ID).
		Str("owner_id", p.OwnerID).
		Str("name", p.Name).
		Msg("Project created")
	s.publish(models.EventProjectCreated, p.ID, input.OwnerID, map[string]string{"name": p.Name})
	return cloneProject(p)
}

// cleanupFailedCreate sweeps the blobs a half-created project left behind.
func (s *Store) cleanupFailedCreate(projectID string) {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	if err := s.sweep(ctx, projectID); err != nil {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("Failed to sweep half-created project")
	}
}

// GetProject returns a deep copy of the aggregate, loading and hydrating
// it on a cache miss.
func (s *Store) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return cloneProject(e.project)
}

// ListProjects scans the persisted aggregates and returns summaries,
// newest activity first. Eager persistence keeps storage current, so the
// listing never consults the cache.
func (s *Store) ListProjects(ctx context.Context, filter ListProjectsFilter) ([]*ProjectSummary, error) {
	keys, err := s.adapter.List(ctx, "projects/")
	if err != nil {
		return nil, err
	}

	summaries := make([]*ProjectSummary, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, "/project.json") {
			continue
		}
		data, err := s.adapter.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		var p models.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode project at %s: %w", key, err)
		}
		if filter.OwnerID != "" && p.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		summaries = append(summaries, summarize(&p))
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// UpdateProject applies a partial update to the aggregate's headline
// fields. Settings changes require the manage-settings permission and
// re-arm the auto-save ticker.
func (s *Store) UpdateProject(ctx context.Context, projectID, actor string, input UpdateProjectInput) (*models.Project, error) {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	e, err := s.entry(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if input.Settings != nil {
		if c := e.project.Collaborator(actor); c == nil || !c.Permissions.CanManageSettings {
			return nil, fmt.Errorf("collaborator %s cannot manage settings: %w", actor, perrors.ErrInvalidOperation)
		}
	}

	undo, err := cloneProject(e.project)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, fmt.Errorf("project name must not be empty: %w", perrors.ErrInvalidOperation)
		}
		e.project.Name = *input.Name
	}
	if input.Description != nil {
		e.project.Description = *input.Description
	}
	if input.Settings != nil {
		e.project.Settings = *input.Settings
	}
	e.project.Touch(time.Now().UTC())

	if err := s.persist(ctx, e.project); err != nil {
		s.rollback(e, undo, false)
		return nil, err
	}
	if input.Settings != nil {
		s.restartAutoSave(e)
	}

	s.publish(models.EventProjectUpdated, projectID, actor, nil)
	return cloneProject(e.project)
}

// DeleteProject removes every blob under the project's prefix, evicts the
// cache entry and cancels its auto-save ticker.
func (s *Store) DeleteProject(ctx context.Context, projectID, actor string) error {
	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	e, cached := s.cache.Delete(projectID)
	if cached {
		s.stopAutoSave(e)
	}
	s.mu.Unlock()

	keys, err := s.adapter.List(ctx, storage.ProjectPrefix(projectID))
	if err != nil {
		return err
	}
	if len(keys) == 0 && !cached {
		return fmt.Errorf("project %s: %w", projectID, perrors.ErrNotFound)
	}
	for _, key := range keys {
		if err := s.adapter.Delete(ctx, key); err != nil {
			return err
		}
	}

	s.logger.Info().Str("project_id", projectID).Msg("Project deleted")
	s.publish(models.EventProjectDeleted, projectID, actor, nil)
	return nil
}

// sweep deletes every blob under a project's prefix.
func (s *Store) sweep(ctx context.Context, projectID string) error {
	keys, err := s.adapter.List(ctx, storage.ProjectPrefix(projectID))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.adapter.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
