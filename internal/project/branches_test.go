package project

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/storage"
)

func TestCreateBranch_FromCurrent(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")

	b, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	assert.Equal(t, "feature", b.Name)
	assert.Equal(t, "main", b.BaseBranch)
	assert.Equal(t, "0.1.0", b.BaseVersion)
	assert.Equal(t, models.BranchActive, b.Status)
	assert.False(t, b.IsDefault)
	assert.False(t, b.IsProtected)

	ok, err := adapter.Exists(context.Background(), storage.BranchSnapshotKey(p.ID, b.ID))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = adapter.Exists(context.Background(), storage.BranchBaseKey(p.ID, b.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "main", got.CurrentBranch, "creating a branch does not switch to it")
}

func TestCreateBranch_Duplicate(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	_, err = s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	assert.ErrorIs(t, err, perrors.ErrAlreadyExists)
}

func TestCreateBranch_MissingBase(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature", BaseBranch: "ghost"})
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

// A branch edit merged back into an untouched main fast-forwards without
// conflicts, and switching back to main shows the merged content.
func TestBranchLifecycle_EditAndFastForwardMerge(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")

	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "feature")
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "app.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)

	res, err := s.MergeBranch(context.Background(), p.ID, "owner", "feature", "main")
	require.NoError(t, err)
	assert.Equal(t, models.MergeCompleted, res.Status)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "owner", res.MergedBy)

	got, err := s.SwitchBranch(context.Background(), p.ID, "owner", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", got.CurrentBranch)
	assert.Equal(t, "0.1.1", got.CurrentVersion, "merge bumps the target branch version")

	f, err := s.GetFile(context.Background(), p.ID, "app.js")
	require.NoError(t, err)
	assert.Equal(t, "v2", f.Content)

	branches, err := s.ListBranches(context.Background(), p.ID)
	require.NoError(t, err)
	byName := map[string]*models.ProjectBranch{}
	for _, b := range branches {
		byName[b.Name] = b
	}
	assert.Equal(t, models.BranchMerged, byName["feature"].Status)
	assert.Equal(t, "0.1.1", byName["main"].CurrentVersion)
}

// Divergent edits on both branches conflict, and a conflicted merge
// mutates nothing: live files, branch records and persisted snapshots all
// stay exactly as they were.
func TestMergeBranch_ConflictLeavesStateUntouched(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")

	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "feature")
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "app.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "main")
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "app.js", "owner", UpdateFileInput{Content: "v3"})
	require.NoError(t, err)

	var featureID string
	branches, err := s.ListBranches(context.Background(), p.ID)
	require.NoError(t, err)
	for _, b := range branches {
		if b.Name == "feature" {
			featureID = b.ID
		}
	}
	require.NotEmpty(t, featureID)
	featureSnapBefore, err := adapter.Load(context.Background(), storage.BranchSnapshotKey(p.ID, featureID))
	require.NoError(t, err)

	res, err := s.MergeBranch(context.Background(), p.ID, "owner", "feature", "main")
	require.NoError(t, err)
	assert.Equal(t, models.MergeConflicted, res.Status)
	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, "app.js", c.Path)
	assert.Equal(t, models.ConflictContent, c.Type)
	assert.Equal(t, "v2", c.SourceContent)
	assert.Equal(t, "v3", c.TargetContent)

	f, err := s.GetFile(context.Background(), p.ID, "app.js")
	require.NoError(t, err)
	assert.Equal(t, "v3", f.Content, "live working set untouched")

	branches, err = s.ListBranches(context.Background(), p.ID)
	require.NoError(t, err)
	for _, b := range branches {
		assert.Equal(t, models.BranchActive, b.Status)
		assert.Equal(t, "0.1.0", b.CurrentVersion)
	}

	featureSnapAfter, err := adapter.Load(context.Background(), storage.BranchSnapshotKey(p.ID, featureID))
	require.NoError(t, err)
	assert.Equal(t, featureSnapBefore, featureSnapAfter, "no snapshot writes on conflict")
}

func TestMergeBranch_ProtectedTargetGated(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")
	_, err := s.AddCollaborator(context.Background(), p.ID, "owner", AddCollaboratorInput{UserID: "spectator", Role: models.RoleViewer})
	require.NoError(t, err)
	_, err = s.AddCollaborator(context.Background(), p.ID, "owner", AddCollaboratorInput{UserID: "dev", Role: models.RoleDeveloper})
	require.NoError(t, err)
	_, err = s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "feature")
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "app.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)

	_, err = s.MergeBranch(context.Background(), p.ID, "spectator", "feature", "main")
	assert.ErrorIs(t, err, perrors.ErrProtectedBranch)

	res, err := s.MergeBranch(context.Background(), p.ID, "dev", "feature", "main")
	require.NoError(t, err)
	assert.Equal(t, models.MergeCompleted, res.Status)
}

func TestMergeBranch_MergedSourceIsTerminal(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")
	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)

	_, err = s.MergeBranch(context.Background(), p.ID, "owner", "feature", "main")
	require.NoError(t, err)
	_, err = s.MergeBranch(context.Background(), p.ID, "owner", "feature", "main")
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
}

func TestSwitchBranch_RoundTripKeepsEdits(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "a.txt", "v1")
	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "wip"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "wip")
	require.NoError(t, err)
	createFile(t, s, p.ID, "b.txt", "draft")

	got, err := s.SwitchBranch(context.Background(), p.ID, "owner", "main")
	require.NoError(t, err)
	assert.Nil(t, got.FileByPath("b.txt"), "branch-local file invisible on main")
	assert.NotNil(t, got.FileByPath("a.txt"))

	got, err = s.SwitchBranch(context.Background(), p.ID, "owner", "wip")
	require.NoError(t, err)
	require.NotNil(t, got.FileByPath("b.txt"))
	assert.Equal(t, "wip", got.CurrentBranch)

	s2 := NewStore(Config{}, adapter, nil, nil, zerolog.Nop())
	defer s2.Close()
	cold, err := s2.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "wip", cold.CurrentBranch)
	require.NotNil(t, cold.FileByPath("b.txt"))
	coldFile, err := s2.GetFile(context.Background(), p.ID, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "draft", coldFile.Content)
}

func TestSwitchBranch_Missing(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	_, err := s.SwitchBranch(context.Background(), p.ID, "owner", "ghost")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

// faultAdapter fails saves of paths with the given suffix while armed.
type faultAdapter struct {
	*storage.MemoryAdapter
	suffix string
	armed  bool
}

func (f *faultAdapter) Save(ctx context.Context, path string, data []byte) error {
	if f.armed && strings.HasSuffix(path, f.suffix) {
		return perrors.NewStorageError("memory", "save", path, errors.New("disk full"))
	}
	return f.MemoryAdapter.Save(ctx, path, data)
}

// A merge whose aggregate write fails must leave persisted state exactly
// as it was before the call, the target's head snapshot included.
// Switching to the target afterwards has to surface the pre-merge
// content, not the half-merged snapshot.
func TestMergeBranch_FailedPersistLeavesStateUntouched(t *testing.T) {
	adapter := &faultAdapter{MemoryAdapter: storage.NewMemoryAdapter(), suffix: "/project.json"}
	s := NewStore(Config{CacheSize: 8}, adapter, nil, nil, zerolog.Nop())
	t.Cleanup(s.Close)

	p := createProject(t, s)
	createFile(t, s, p.ID, "app.js", "v1")
	require.Len(t, p.Branches, 1)
	mainID := p.Branches[0].ID

	_, err := s.CreateBranch(context.Background(), p.ID, "owner", CreateBranchInput{Name: "feature"})
	require.NoError(t, err)
	_, err = s.SwitchBranch(context.Background(), p.ID, "owner", "feature")
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "app.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)

	mainSnapBefore, err := adapter.Load(context.Background(), storage.BranchSnapshotKey(p.ID, mainID))
	require.NoError(t, err)

	adapter.armed = true
	_, err = s.MergeBranch(context.Background(), p.ID, "owner", "feature", "main")
	require.Error(t, err)
	adapter.armed = false

	mainSnapAfter, err := adapter.Load(context.Background(), storage.BranchSnapshotKey(p.ID, mainID))
	require.NoError(t, err)
	assert.Equal(t, mainSnapBefore, mainSnapAfter, "failed merge must not replace the target snapshot")

	branches, err := s.ListBranches(context.Background(), p.ID)
	require.NoError(t, err)
	for _, b := range branches {
		assert.Equal(t, models.BranchActive, b.Status)
		assert.Equal(t, "0.1.0", b.CurrentVersion)
	}

	got, err := s.SwitchBranch(context.Background(), p.ID, "owner", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", got.CurrentBranch)
	f, err := s.GetFile(context.Background(), p.ID, "app.js")
	require.NoError(t, err)
	assert.Equal(t, "v1", f.Content, "merged content leaked into the target branch")
}
