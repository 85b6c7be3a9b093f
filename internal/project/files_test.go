package project

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/project-engine/internal/contenthash"
	perrors "github.com/appdraft/project-engine/internal/errors"
	"github.com/appdraft/project-engine/internal/storage"
)

func TestCreateFile_PopulatesMetadata(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)

	f := createFile(t, s, p.ID, "src/components/App.tsx", "export const App = () => null")

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "App.tsx", f.Name)
	assert.Equal(t, "tsx", f.Extension)
	assert.Equal(t, int64(len("export const App = () => null")), f.Size)
	assert.Equal(t, contenthash.Sum("export const App = () => null"), f.Hash)
	assert.Equal(t, 1, f.Version)
	assert.False(t, f.LastModified.IsZero())

	got, err := s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Directories, "src")
	assert.Contains(t, got.Directories, "src/components")

	blob, err := adapter.Load(context.Background(), storage.FileKey(p.ID, f.ID))
	require.NoError(t, err)
	assert.Equal(t, "export const App = () => null", string(blob))
}

func TestCreateFile_AggregateCarriesNoContent(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "secret.env", "TOP-SECRET-VALUE")

	data, err := adapter.Load(context.Background(), storage.ProjectKey(p.ID))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "TOP-SECRET-VALUE",
		"file content must live in its own blob, not the aggregate document")
	assert.Contains(t, string(data), "secret.env", "metadata stays in the aggregate")
}

func TestCreateFile_DuplicatePath(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "index.js", "a")

	_, err := s.CreateFile(context.Background(), p.ID, "owner", CreateFileInput{Path: "index.js", Content: "b"})
	assert.ErrorIs(t, err, perrors.ErrAlreadyExists)
}

func TestCreateFile_EmptyPath(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	_, err := s.CreateFile(context.Background(), p.ID, "owner", CreateFileInput{Content: "b"})
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
}

func TestUpdateFile_BumpsVersionAndRehashes(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "index.js", "v1")

	f, err := s.UpdateFile(context.Background(), p.ID, "index.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Version)
	assert.Equal(t, "v2", f.Content)
	assert.Equal(t, contenthash.Sum("v2"), f.Hash)

	blob, err := adapter.Load(context.Background(), storage.FileKey(p.ID, f.ID))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(blob))
}

func TestUpdateFile_Missing(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	_, err := s.UpdateFile(context.Background(), p.ID, "nope.js", "owner", UpdateFileInput{Content: "x"})
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestDeleteFile_RemovesBlobAndDirectories(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	f := createFile(t, s, p.ID, "src/util.js", "x")
	createFile(t, s, p.ID, "index.js", "y")

	require.NoError(t, s.DeleteFile(context.Background(), p.ID, "src/util.js", "owner"))

	got, err := s.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.FileByPath("src/util.js"))
	assert.NotContains(t, got.Directories, "src", "empty directory pruned")

	ok, err := adapter.Exists(context.Background(), storage.FileKey(p.ID, f.ID))
	require.NoError(t, err)
	assert.False(t, ok, "content blob deleted")
}

func TestDeleteFile_Missing(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)

	err := s.DeleteFile(context.Background(), p.ID, "nope.js", "owner")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestFileLock_RefusesEdits(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "index.js", "v1")

	f, err := s.SetFileLock(context.Background(), p.ID, "index.js", "owner", true)
	require.NoError(t, err)
	assert.True(t, f.Locked)

	_, err = s.UpdateFile(context.Background(), p.ID, "index.js", "owner", UpdateFileInput{Content: "v2"})
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)
	err = s.DeleteFile(context.Background(), p.ID, "index.js", "owner")
	assert.ErrorIs(t, err, perrors.ErrInvalidOperation)

	_, err = s.SetFileLock(context.Background(), p.ID, "index.js", "owner", false)
	require.NoError(t, err)
	_, err = s.UpdateFile(context.Background(), p.ID, "index.js", "owner", UpdateFileInput{Content: "v2"})
	require.NoError(t, err)
}

func TestFileLock_SurvivesReload(t *testing.T) {
	s, adapter := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "index.js", "v1")
	_, err := s.SetFileLock(context.Background(), p.ID, "index.js", "owner", true)
	require.NoError(t, err)

	s2 := NewStore(Config{}, adapter, nil, nil, zerolog.Nop())
	defer s2.Close()

	f, err := s2.GetFile(context.Background(), p.ID, "index.js")
	require.NoError(t, err)
	assert.True(t, f.Locked)
}

func TestGetFile_ReturnsCopy(t *testing.T) {
	s, _ := testStore(t)
	p := createProject(t, s)
	createFile(t, s, p.ID, "index.js", "v1")

	f, err := s.GetFile(context.Background(), p.ID, "index.js")
	require.NoError(t, err)
	f.Content = "mutated"

	again, err := s.GetFile(context.Background(), p.ID, "index.js")
	require.NoError(t, err)
	assert.Equal(t, "v1", again.Content)
}
