// Package snapshot captures the structure of a directory tree, persists it
// in a compact binary form, and compares two captures.
package snapshot

import "errors"

var (
	// ErrCapture is returned when a directory tree cannot be captured.
	ErrCapture = errors.New("cannot capture directory")
	// ErrMalformed is returned when a snapshot file cannot be decoded.
	ErrMalformed = errors.New("malformed snapshot")
)

// Snapshot is the set of directories and files found under a root at one
// point in time. Paths are relative to the root, use forward slashes, and
// keep traversal order.
type Snapshot struct {
	Dirs  []string `json:"dirs"`
	Files []string `json:"files"`
}

// Diff lists the paths that appeared or disappeared between two snapshots.
type Diff struct {
	AddedDirs    []string `json:"added_dirs"`
	AddedFiles   []string `json:"added_files"`
	RemovedDirs  []string `json:"removed_dirs"`
	RemovedFiles []string `json:"removed_files"`
}

// Empty reports whether the diff has no changes.
func (d Diff) Empty() bool {
	return len(d.AddedDirs) == 0 && len(d.AddedFiles) == 0 &&
		len(d.RemovedDirs) == 0 && len(d.RemovedFiles) == 0
}
