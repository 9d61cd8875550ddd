// Package registry keeps the durable list of tracked directories and the
// snapshot files recorded for each of them.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrMalformed describes a registry document that cannot be used. Load
// recovers from it by starting with an empty registry.
var ErrMalformed = errors.New("malformed registry")

// Directory is a tracked directory.
type Directory struct {
	ID        int      `json:"id"`
	Path      string   `json:"path"`
	SnapFiles []string `json:"snap_files"`
}

// Registry is the in-memory image of the registry file. Changes are only
// written back by Save.
type Registry struct {
	fsys        afero.Fs
	snapshotDir string
	log         zerolog.Logger

	dirs []Directory
	// lastID is the highest id ever handed out, -1 when none has been.
	lastID int
}

// New returns an empty registry whose snapshot references resolve inside
// snapshotDir.
func New(fsys afero.Fs, snapshotDir string, log zerolog.Logger) *Registry {
	return &Registry{
		fsys:        fsys,
		snapshotDir: snapshotDir,
		log:         log,
		dirs:        []Directory{},
		lastID:      -1,
	}
}

// document is the on-disk shape. Pointers let decode tell missing keys
// apart from zero values.
type document struct {
	Dirs   *[]entry `json:"dirs"`
	LastID *int     `json:"last_id,omitempty"`
}

type entry struct {
	ID        *int      `json:"id"`
	Path      *string   `json:"path"`
	SnapFiles *[]string `json:"snap_files"`
}

// Load reads the registry stored in file. A missing file is created empty.
// Empty content yields an empty registry, and malformed content is logged
// and replaced by one. Only I/O failures are returned.
func Load(fsys afero.Fs, file, snapshotDir string, log zerolog.Logger) (*Registry, error) {
	r := New(fsys, snapshotDir, log)

	data, err := afero.ReadFile(fsys, file)
	if errors.Is(err, os.ErrNotExist) {
		if err := fsys.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
		if err := afero.WriteFile(fsys, file, nil, 0o644); err != nil {
			return nil, fmt.Errorf("create registry %s: %w", file, err)
		}
		log.Debug().Str("file", file).Msg("created empty registry")
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", file, err)
	}
	// A freshly created registry has never been saved
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}

	if err := r.decode(data); err != nil {
		log.Warn().Err(err).Str("file", file).Msg("ignoring registry contents")
		return New(fsys, snapshotDir, log), nil
	}
	log.Debug().Str("file", file).Int("dirs", len(r.dirs)).Msg("loaded registry")
	return r, nil
}

func (r *Registry) decode(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if doc.Dirs == nil {
		return fmt.Errorf("%w: missing dirs", ErrMalformed)
	}

	ids := make(map[int]bool)
	paths := make(map[string]bool)
	for i, e := range *doc.Dirs {
		switch {
		case e.ID == nil:
			return fmt.Errorf("%w: dirs[%d]: missing id", ErrMalformed, i)
		case e.Path == nil || *e.Path == "":
			return fmt.Errorf("%w: dirs[%d]: missing path", ErrMalformed, i)
		case e.SnapFiles == nil:
			return fmt.Errorf("%w: dirs[%d]: missing snap_files", ErrMalformed, i)
		case ids[*e.ID]:
			return fmt.Errorf("%w: duplicate id %d", ErrMalformed, *e.ID)
		case paths[*e.Path]:
			return fmt.Errorf("%w: duplicate path %s", ErrMalformed, *e.Path)
		}
		ids[*e.ID] = true
		paths[*e.Path] = true

		r.dirs = append(r.dirs, Directory{ID: *e.ID, Path: *e.Path, SnapFiles: *e.SnapFiles})
		r.lastID = max(r.lastID, *e.ID)
	}
	if doc.LastID != nil {
		r.lastID = max(r.lastID, *doc.LastID)
	}
	return nil
}

// Save writes the whole registry to file, replacing it through a temporary
// file in the same directory. Output is deterministic.
func (r *Registry) Save(file string) (err error) {
	doc := struct {
		Dirs   []Directory `json:"dirs"`
		LastID *int        `json:"last_id,omitempty"`
	}{Dirs: r.dirs}
	if r.lastID >= 0 {
		doc.LastID = &r.lastID
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	tmp, err := afero.TempFile(r.fsys, filepath.Dir(file), filepath.Base(file)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save registry %s: %w", file, err)
	}
	defer func() {
		if err != nil {
			_ = r.fsys.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save registry %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save registry %s: %w", file, err)
	}
	// Temp files are created 0600
	if err := r.fsys.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("save registry %s: %w", file, err)
	}
	if err := r.fsys.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("save registry %s: %w", file, err)
	}
	r.log.Debug().Str("file", file).Int("dirs", len(r.dirs)).Msg("saved registry")
	return nil
}

// Directories returns the tracked directories in the order they were added.
func (r *Registry) Directories() []Directory {
	out := make([]Directory, len(r.dirs))
	for i, d := range r.dirs {
		out[i] = d.clone()
	}
	return out
}

// Len returns the number of tracked directories.
func (r *Registry) Len() int {
	return len(r.dirs)
}

// LastID returns the highest id ever assigned, or -1.
func (r *Registry) LastID() int {
	return r.lastID
}

// AddDirectory tracks path under a fresh id. Membership is decided by exact
// string comparison; it returns false and changes nothing if path is
// already tracked.
func (r *Registry) AddDirectory(path string) bool {
	if r.indexOfPath(path) >= 0 {
		return false
	}
	r.lastID++
	r.dirs = append(r.dirs, Directory{ID: r.lastID, Path: path, SnapFiles: []string{}})
	r.log.Debug().Int("id", r.lastID).Str("path", path).Msg("tracking directory")
	return true
}

// GetByID returns the directory with the given id.
func (r *Registry) GetByID(id int) (Directory, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return Directory{}, false
	}
	return r.dirs[i].clone(), true
}

// GetByPath returns the directory tracked under exactly path.
func (r *Registry) GetByPath(path string) (Directory, bool) {
	i := r.indexOfPath(path)
	if i < 0 {
		return Directory{}, false
	}
	return r.dirs[i].clone(), true
}

// UpdateWithSnapshot records a snapshot file for directory id. It reports
// false when no such directory exists.
func (r *Registry) UpdateWithSnapshot(id int, filename string) bool {
	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.dirs[i].SnapFiles = append(r.dirs[i].SnapFiles, filename)
	return true
}

// RemoveDirectory stops tracking directory id and deletes its snapshot
// files. It reports false with a nil error when id is unknown.
//
// The entry is only dropped once every snapshot file is gone. If some files
// cannot be deleted the entry stays, listing just those files, and the
// deletion errors are returned.
func (r *Registry) RemoveDirectory(id int) (bool, error) {
	i := r.indexOf(id)
	if i < 0 {
		return false, nil
	}

	remaining, err := removeSnapshotFiles(r.fsys, r.snapshotDir, r.dirs[i].SnapFiles)
	if len(remaining) > 0 {
		r.dirs[i].SnapFiles = remaining
		r.log.Warn().Err(err).Int("id", id).Int("remaining", len(remaining)).Msg("directory kept, snapshot files left behind")
		return false, err
	}

	r.log.Debug().Int("id", id).Str("path", r.dirs[i].Path).Msg("removed directory")
	r.dirs = slices.Delete(r.dirs, i, i+1)
	return true, nil
}

func (r *Registry) indexOf(id int) int {
	return slices.IndexFunc(r.dirs, func(d Directory) bool { return d.ID == id })
}

func (r *Registry) indexOfPath(path string) int {
	return slices.IndexFunc(r.dirs, func(d Directory) bool { return d.Path == path })
}

func (d Directory) clone() Directory {
	d.SnapFiles = slices.Clone(d.SnapFiles)
	return d
}
