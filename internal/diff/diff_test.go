package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdraft/project-engine/internal/contenthash"
	"github.com/appdraft/project-engine/internal/models"
)

func TestLines_NoChanges(t *testing.T) {
	fd := Lines("a.txt", "one\ntwo\nthree", "one\ntwo\nthree")
	assert.Empty(t, fd.Hunks)
	assert.Equal(t, 0, fd.Additions)
	assert.Equal(t, 0, fd.Deletions)
}

func TestLines_SingleModification(t *testing.T) {
	fd := Lines("a.txt", "one\ntwo\nthree", "one\n2\nthree")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 1, fd.Additions)
	assert.Equal(t, 1, fd.Deletions)

	h := fd.Hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.NewStart)

	// context "one", delete "two", add "2", context "three"
	require.Len(t, h.Lines, 4)
	assert.Equal(t, models.LineContext, h.Lines[0].Kind)
	assert.Equal(t, "one", h.Lines[0].Text)
	assert.Equal(t, models.LineDelete, h.Lines[1].Kind)
	assert.Equal(t, "two", h.Lines[1].Text)
	assert.Equal(t, 2, h.Lines[1].OldNumber)
	assert.Equal(t, models.LineAdd, h.Lines[2].Kind)
	assert.Equal(t, "2", h.Lines[2].Text)
	assert.Equal(t, 2, h.Lines[2].NewNumber)
	assert.Equal(t, models.LineContext, h.Lines[3].Kind)
}

func TestLines_Append(t *testing.T) {
	fd := Lines("a.txt", "one", "one\ntwo\nthree")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 2, fd.Additions)
	assert.Equal(t, 0, fd.Deletions)

	h := fd.Hunks[0]
	assert.Equal(t, models.LineContext, h.Lines[0].Kind)
	assert.Equal(t, models.LineAdd, h.Lines[1].Kind)
	assert.Equal(t, models.LineAdd, h.Lines[2].Kind)
	assert.Equal(t, 2, h.Lines[1].NewNumber)
	assert.Equal(t, 3, h.Lines[2].NewNumber)
}

func TestLines_Truncate(t *testing.T) {
	fd := Lines("a.txt", "one\ntwo\nthree", "one")
	assert.Equal(t, 0, fd.Additions)
	assert.Equal(t, 2, fd.Deletions)
}

func TestLines_GreedyPairsMismatches(t *testing.T) {
	// The scan never searches for a resync point: a mismatch always
	// consumes one old and one new line as a delete/add pair.
	fd := Lines("a.txt", "a\nb\nc", "x\nb\nc")
	require.Len(t, fd.Hunks, 1)
	h := fd.Hunks[0]
	require.GreaterOrEqual(t, len(h.Lines), 2)
	assert.Equal(t, models.LineDelete, h.Lines[0].Kind)
	assert.Equal(t, "a", h.Lines[0].Text)
	assert.Equal(t, models.LineAdd, h.Lines[1].Kind)
	assert.Equal(t, "x", h.Lines[1].Text)
}

func TestLines_Deterministic(t *testing.T) {
	before := "package main\n\nfunc main() {\n\tprintln(1)\n}\n"
	after := "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(1)\n}\n"

	first := Lines("main.go", before, after)
	for i := 0; i < 5; i++ {
		again := Lines("main.go", before, after)
		assert.Equal(t, first, again)
	}
}

func TestLines_DistantChangesSplitHunks(t *testing.T) {
	before := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj\nk"
	after := "A\nb\nc\nd\ne\nf\ng\nh\ni\nj\nK"

	fd := Lines("a.txt", before, after)
	require.Len(t, fd.Hunks, 2)
	assert.Equal(t, 1, fd.Hunks[0].OldStart)
	assert.Equal(t, 2, fd.Additions)
	assert.Equal(t, 2, fd.Deletions)

	// Second hunk opens with up to three leading context lines.
	h2 := fd.Hunks[1]
	assert.Equal(t, 8, h2.OldStart)
	assert.Equal(t, models.LineContext, h2.Lines[0].Kind)
}

func TestLines_HunkCounts(t *testing.T) {
	fd := Lines("a.txt", "one\ntwo\nthree", "one\n2\nthree")
	h := fd.Hunks[0]
	assert.Equal(t, 3, h.OldLines) // 2 context + 1 delete
	assert.Equal(t, 3, h.NewLines) // 2 context + 1 add
}

func TestLines_TrailingNewline(t *testing.T) {
	// A newline-terminated revision splits into a final empty segment
	// that diffs like any other line.
	fd := Lines("a.txt", "one\ntwo\n", "one\n2\n")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 1, fd.Additions)
	assert.Equal(t, 1, fd.Deletions)

	h := fd.Hunks[0]
	require.Len(t, h.Lines, 4)
	last := h.Lines[3]
	assert.Equal(t, models.LineContext, last.Kind, "matching trailing empty segments pair as context")
	assert.Equal(t, "", last.Text)
	assert.Equal(t, 3, last.OldNumber)
	assert.Equal(t, 3, last.NewNumber)

	fd = Lines("a.txt", "one", "one\n")
	require.Len(t, fd.Hunks, 1)
	assert.Equal(t, 1, fd.Additions)
	assert.Equal(t, 0, fd.Deletions)
	lines := fd.Hunks[0].Lines
	require.Len(t, lines, 2)
	assert.Equal(t, models.LineAdd, lines[1].Kind)
	assert.Equal(t, "", lines[1].Text, "gaining a trailing newline adds one empty line")
}

func file(id, path, content string) *models.ProjectFile {
	name, ext := models.SplitPath(path)
	return &models.ProjectFile{
		ID:        id,
		Path:      path,
		Name:      name,
		Extension: ext,
		Content:   content,
		Size:      int64(len(content)),
		Hash:      contenthash.Sum(content),
	}
}

func snapOf(files ...*models.ProjectFile) *models.ProjectSnapshot {
	m := make(map[string]models.FileSnapshot, len(files))
	for _, f := range files {
		m[f.Path] = models.FileSnapshot{Content: f.Content, Hash: f.Hash, Size: f.Size}
	}
	return &models.ProjectSnapshot{Files: m}
}

func TestChanges_NoPriorVersion(t *testing.T) {
	p := &models.Project{Files: []*models.ProjectFile{
		file("f1", "a.txt", "a"),
		file("f2", "b.txt", "b"),
	}}

	changes := Changes(p, nil)
	require.Len(t, changes, 2)
	assert.Equal(t, models.ChangeAdded, changes[0].Type)
	assert.Equal(t, models.ChangeAdded, changes[1].Type)
}

func TestChanges_AddedModifiedDeleted(t *testing.T) {
	kept := file("f1", "kept.txt", "same")
	edited := file("f2", "edited.txt", "old content")
	removed := file("f3", "removed.txt", "bye")
	prior := snapOf(kept, edited, removed)

	editedNow := file("f2", "edited.txt", "new content")
	added := file("f4", "added.txt", "hi")
	p := &models.Project{Files: []*models.ProjectFile{kept, editedNow, added}}

	changes := Changes(p, prior)
	require.Len(t, changes, 3)

	byPath := map[string]*models.FileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	assert.Equal(t, models.ChangeModified, byPath["edited.txt"].Type)
	require.NotNil(t, byPath["edited.txt"].Diff)
	assert.Equal(t, 1, byPath["edited.txt"].Diff.Additions)
	assert.Equal(t, 1, byPath["edited.txt"].Diff.Deletions)

	assert.Equal(t, models.ChangeAdded, byPath["added.txt"].Type)
	assert.Nil(t, byPath["added.txt"].Diff)

	assert.Equal(t, models.ChangeDeleted, byPath["removed.txt"].Type)

	_, unchanged := byPath["kept.txt"]
	assert.False(t, unchanged)
}

func TestChanges_NoDifferences(t *testing.T) {
	f := file("f1", "a.txt", "a")
	p := &models.Project{Files: []*models.ProjectFile{f}}
	assert.Empty(t, Changes(p, snapOf(f)))
}

func TestChanges_OrderedByPath(t *testing.T) {
	removed := file("f3", "a_removed.txt", "bye")
	prior := snapOf(removed)

	p := &models.Project{Files: []*models.ProjectFile{
		file("f1", "z.txt", "z"),
		file("f2", "b.txt", "b"),
	}}

	changes := Changes(p, prior)
	require.Len(t, changes, 3)
	assert.Equal(t, "a_removed.txt", changes[0].Path)
	assert.Equal(t, "b.txt", changes[1].Path)
	assert.Equal(t, "z.txt", changes[2].Path)
}
