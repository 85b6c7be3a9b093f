package models

import (
	"sort"
	"strings"
	"time"
)

// FileSnapshot is the frozen capture of a single file inside a snapshot.
type FileSnapshot struct {
	Content string `json:"content"`
	Hash    string `json:"hash"`
	Size    int64  `json:"size"`
}

// ProjectSnapshot is an immutable point-in-time capture of all project
// files plus the directory structure. It is created by the snapshot engine
// and never mutated afterwards.
type ProjectSnapshot struct {
	Files     map[string]FileSnapshot `json:"files"` // keyed by path
	Structure *DirectoryNode          `json:"structure"`
	TakenAt   time.Time               `json:"taken_at"`
}

// Node types inside a snapshot's directory structure.
const (
	NodeDirectory = "directory"
	NodeFile      = "file"
)

// DirectoryNode is one node of the hierarchical directory tree built from
// file paths. File leaves reference the originating file id.
type DirectoryNode struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Type     string           `json:"type"`
	FileID   string           `json:"file_id,omitempty"`
	Children []*DirectoryNode `json:"children,omitempty"`
}

// Child returns the direct child with the given name, or nil.
func (n *DirectoryNode) Child(name string) *DirectoryNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// SortChildren orders children by name, directories and files alike,
// recursively, so identical file sets always produce identical trees.
func (n *DirectoryNode) SortChildren() {
	sort.Slice(n.Children, func(i, j int) bool {
		return n.Children[i].Name < n.Children[j].Name
	})
	for _, c := range n.Children {
		c.SortChildren()
	}
}

// Find walks the tree to the node at the given slash-separated path.
func (n *DirectoryNode) Find(p string) *DirectoryNode {
	if p == "" || p == "." {
		return n
	}
	cur := n
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Paths returns the sorted file paths captured in the snapshot.
func (s *ProjectSnapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
