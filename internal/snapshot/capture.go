package snapshot

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// Capture walks root and records every directory and file below it.
//
// Entries of a directory are recorded before any of its subdirectories are
// descended into, in name order. Symlinks are followed; a link that points
// back at one of its own ancestors is recorded but not descended into, and a
// dangling link is recorded as a file. Any error discards the whole capture.
func Capture(fsys afero.Fs, root string) (Snapshot, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w %s: %w", ErrCapture, root, err)
	}
	if !info.IsDir() {
		return Snapshot{}, fmt.Errorf("%w %s: not a directory", ErrCapture, root)
	}

	s := Snapshot{Dirs: []string{}, Files: []string{}}
	if err := walk(fsys, root, "", []os.FileInfo{info}, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

type subdir struct {
	path string
	rel  string
	info os.FileInfo
}

func walk(fsys afero.Fs, dir, rel string, ancestors []os.FileInfo, s *Snapshot) error {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrCapture, dir, err)
	}

	var subdirs []subdir
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		r := path.Join(rel, e.Name())

		info := e
		if e.Mode()&os.ModeSymlink != 0 {
			// Dangling links keep their lstat info and count as files
			if target, err := fsys.Stat(p); err == nil {
				info = target
			}
		}

		if info.IsDir() {
			s.Dirs = append(s.Dirs, r)
			subdirs = append(subdirs, subdir{path: p, rel: r, info: info})
		} else {
			s.Files = append(s.Files, r)
		}
	}

	for _, d := range subdirs {
		if isAncestor(d.info, ancestors) {
			continue
		}
		if err := walk(fsys, d.path, d.rel, append(ancestors, d.info), s); err != nil {
			return err
		}
	}
	return nil
}

// isAncestor reports whether info names the same directory as one of the
// directories currently being walked.
func isAncestor(info os.FileInfo, ancestors []os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(info, a) {
			return true
		}
	}
	return false
}
