// Package diff computes line diffs between file revisions and change sets
// between a project's live files and its last versioned snapshot.
//
// The line diff is a single greedy two-pointer scan, not a minimal edit
// script: on mismatch it emits a delete for the old line and an add for
// the new one and advances both pointers. Identical inputs always produce
// identical hunks.
package diff

import (
	"sort"
	"strings"

	"github.com/appdraft/project-engine/internal/models"
)

// ContextLines is the number of unchanged lines carried around each
// change inside a hunk.
const ContextLines = 3

type opKind uint8

const (
	opEqual opKind = iota
	opAdd
	opDelete
)

type editOp struct {
	kind   opKind
	oldIdx int
	newIdx int
}

// Lines diffs two revisions of the file at path.
func Lines(path, oldContent, newContent string) *models.FileDiff {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")

	ops := scan(oldLines, newLines)
	fd := &models.FileDiff{Path: path}
	fd.Hunks = buildHunks(oldLines, newLines, ops)
	for _, h := range fd.Hunks {
		for _, l := range h.Lines {
			switch l.Kind {
			case models.LineAdd:
				fd.Additions++
			case models.LineDelete:
				fd.Deletions++
			}
		}
	}
	return fd
}

// scan walks both line arrays once. Equal lines advance both pointers; a
// mismatch consumes one old line as a delete and one new line as an add.
// Leftover lines on either side become pure deletes or adds.
func scan(oldLines, newLines []string) []editOp {
	var ops []editOp
	i, j := 0, 0
	for i < len(oldLines) && j < len(newLines) {
		if oldLines[i] == newLines[j] {
			ops = append(ops, editOp{kind: opEqual, oldIdx: i, newIdx: j})
			i++
			j++
			continue
		}
		ops = append(ops, editOp{kind: opDelete, oldIdx: i, newIdx: j})
		i++
		ops = append(ops, editOp{kind: opAdd, oldIdx: i, newIdx: j})
		j++
	}
	for ; i < len(oldLines); i++ {
		ops = append(ops, editOp{kind: opDelete, oldIdx: i, newIdx: j})
	}
	for ; j < len(newLines); j++ {
		ops = append(ops, editOp{kind: opAdd, oldIdx: i, newIdx: j})
	}
	return ops
}

// buildHunks groups the edit script into hunks. A hunk opens on the first
// change, carries up to ContextLines unchanged lines before, between and
// after changes, and closes once the equal gap exceeds ContextLines.
// Line numbers are 1-based.
func buildHunks(oldLines, newLines []string, ops []editOp) []models.DiffHunk {
	var hunks []models.DiffHunk
	var cur *models.DiffHunk
	var pending []models.DiffLine // trailing equal lines awaiting the next change
	equalRun := 0

	open := func(op editOp) {
		cur = &models.DiffHunk{
			OldStart: op.oldIdx + 1,
			NewStart: op.newIdx + 1,
		}
		if len(pending) > 0 {
			cur.OldStart = pending[0].OldNumber
			cur.NewStart = pending[0].NewNumber
			cur.Lines = append(cur.Lines, pending...)
			cur.OldLines += len(pending)
			cur.NewLines += len(pending)
		}
		pending = nil
	}

	closeHunk := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}

	for _, op := range ops {
		switch op.kind {
		case opEqual:
			line := models.DiffLine{
				Kind:      models.LineContext,
				OldNumber: op.oldIdx + 1,
				NewNumber: op.newIdx + 1,
				Text:      oldLines[op.oldIdx],
			}
			if cur != nil {
				if equalRun < ContextLines {
					cur.Lines = append(cur.Lines, line)
					cur.OldLines++
					cur.NewLines++
					equalRun++
					continue
				}
				closeHunk()
			}
			pending = append(pending, line)
			if len(pending) > ContextLines {
				pending = pending[1:]
			}

		case opDelete:
			if cur == nil {
				open(op)
			}
			cur.Lines = append(cur.Lines, models.DiffLine{
				Kind:      models.LineDelete,
				OldNumber: op.oldIdx + 1,
				Text:      oldLines[op.oldIdx],
			})
			cur.OldLines++
			equalRun = 0

		case opAdd:
			if cur == nil {
				open(op)
			}
			cur.Lines = append(cur.Lines, models.DiffLine{
				Kind:      models.LineAdd,
				NewNumber: op.newIdx + 1,
				Text:      newLines[op.newIdx],
			})
			cur.NewLines++
			equalRun = 0
		}
	}
	closeHunk()
	return hunks
}

// Changes compares the project's live file list against the snapshot of
// its newest persisted version. A nil prior snapshot (no version yet)
// reports every live file as added. Modified entries embed the line diff
// from the snapshot revision to the live revision. The result is ordered
// by path.
func Changes(p *models.Project, prior *models.ProjectSnapshot) []*models.FileChange {
	var changes []*models.FileChange

	for _, f := range p.Files {
		if prior == nil {
			changes = append(changes, &models.FileChange{Type: models.ChangeAdded, Path: f.Path})
			continue
		}
		old, ok := prior.Files[f.Path]
		if !ok {
			changes = append(changes, &models.FileChange{Type: models.ChangeAdded, Path: f.Path})
			continue
		}
		if old.Hash != f.Hash {
			changes = append(changes, &models.FileChange{
				Type: models.ChangeModified,
				Path: f.Path,
				Diff: Lines(f.Path, old.Content, f.Content),
			})
		}
	}

	if prior != nil {
		for _, path := range prior.Paths() {
			if p.FileByPath(path) == nil {
				changes = append(changes, &models.FileChange{Type: models.ChangeDeleted, Path: path})
			}
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
