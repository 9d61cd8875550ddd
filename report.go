package main

import (
	"fmt"
	"io"

	"github.com/leighmcculloch/dirsnap/internal/snapshot"
)

// writeComparison renders a comparison as markdown
func writeComparison(w io.Writer, c Comparison) error {
	if _, err := fmt.Fprintf(w, "# Comparison Result for %s and %s\n", c.Older, c.Newer); err != nil {
		return err
	}
	sections := []struct {
		title string
		paths []string
	}{
		{"Added Directories", c.AddedDirs},
		{"Added Files", c.AddedFiles},
		{"Removed Directories", c.RemovedDirs},
		{"Removed Files", c.RemovedFiles},
	}
	for _, s := range sections {
		if err := writeSection(w, s.title, s.paths); err != nil {
			return err
		}
	}
	return nil
}

// writeSnapshot renders the contents of a snapshot as markdown
func writeSnapshot(w io.Writer, name string, s snapshot.Snapshot) error {
	if _, err := fmt.Fprintf(w, "# Snapshot %s\n", name); err != nil {
		return err
	}
	if err := writeSection(w, "Directories", s.Dirs); err != nil {
		return err
	}
	return writeSection(w, "Files", s.Files)
}

func writeSection(w io.Writer, title string, paths []string) error {
	if _, err := fmt.Fprintf(w, "\n## %s\n", title); err != nil {
		return err
	}
	if len(paths) == 0 {
		_, err := fmt.Fprintf(w, "(none)\n")
		return err
	}
	for _, p := range paths {
		if _, err := fmt.Fprintf(w, "- %s\n", p); err != nil {
			return err
		}
	}
	return nil
}
