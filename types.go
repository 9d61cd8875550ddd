package main

import "github.com/leighmcculloch/dirsnap/internal/snapshot"

// TrackedDirectory is a tracked directory and its snapshot files
type TrackedDirectory struct {
	ID        int      `json:"id"`
	Path      string   `json:"path"`
	Snapshots []string `json:"snapshots"`
}

// State represents every tracked directory
type State struct {
	Directories []TrackedDirectory `json:"directories"`
}

// Comparison is the result of comparing two snapshot files
type Comparison struct {
	Older string `json:"older"`
	Newer string `json:"newer"`
	Mode  string `json:"mode"`
	snapshot.Diff
}
