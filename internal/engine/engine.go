// Package engine ties the registry, the snapshot store and the differ
// together behind the operations a front end needs.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/leighmcculloch/dirsnap/internal/config"
	"github.com/leighmcculloch/dirsnap/internal/registry"
	"github.com/leighmcculloch/dirsnap/internal/snapshot"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var (
	// ErrNotDirectory is returned when a path to track is not a directory.
	ErrNotDirectory = errors.New("not a directory")
	// ErrNotTracked is returned when a path is not in the registry.
	ErrNotTracked = errors.New("directory is not tracked")
)

// Engine owns the registry for one session. It is not safe for concurrent
// use, and registry changes only reach disk through SaveRegistry.
type Engine struct {
	fsys     afero.Fs
	settings *config.Settings
	registry *registry.Registry
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to name snapshot files.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates the settings tree if needed and loads the registry.
func New(fsys afero.Fs, settings *config.Settings, log zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := settings.Ensure(fsys); err != nil {
		return nil, err
	}
	reg, err := registry.Load(fsys, settings.RegistryFile, settings.SnapshotDir, log)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		fsys:     fsys,
		settings: settings,
		registry: reg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ListTrackedDirectories returns the tracked directories in the order they
// were added.
func (e *Engine) ListTrackedDirectories() []registry.Directory {
	return e.registry.Directories()
}

// Directory looks up a tracked directory by id.
func (e *Engine) Directory(id int) (registry.Directory, bool) {
	return e.registry.GetByID(id)
}

// DirectoryByPath looks up a tracked directory by path, normalized the same
// way AddDirectory stores it.
func (e *Engine) DirectoryByPath(path string) (registry.Directory, bool, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return registry.Directory{}, false, err
	}
	d, ok := e.registry.GetByPath(p)
	return d, ok, nil
}

// AddDirectory tracks an existing directory. The returned bool is false when
// the directory was already tracked, in which case the existing entry is
// returned.
func (e *Engine) AddDirectory(path string) (registry.Directory, bool, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return registry.Directory{}, false, err
	}
	info, err := e.fsys.Stat(filepath.FromSlash(p))
	if err != nil {
		return registry.Directory{}, false, fmt.Errorf("failed to add %s: %w", p, err)
	}
	if !info.IsDir() {
		return registry.Directory{}, false, fmt.Errorf("failed to add %s: %w", p, ErrNotDirectory)
	}

	added := e.registry.AddDirectory(p)
	d, _ := e.registry.GetByPath(p)
	if added {
		e.log.Info().Int("id", d.ID).Str("path", p).Msg("added directory")
	}
	return d, added, nil
}

// RemoveDirectory stops tracking directory id and deletes its snapshots.
// See registry.Registry.RemoveDirectory for the failure semantics.
func (e *Engine) RemoveDirectory(id int) (bool, error) {
	ok, err := e.registry.RemoveDirectory(id)
	if ok {
		e.log.Info().Int("id", id).Msg("removed directory")
	}
	return ok, err
}

// TakeSnapshot captures the tracked directory at path, stores the snapshot
// and records it in the registry. It returns the snapshot file name.
func (e *Engine) TakeSnapshot(path string) (string, error) {
	d, ok, err := e.DirectoryByPath(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotTracked, path)
	}

	s, err := snapshot.Capture(e.fsys, filepath.FromSlash(d.Path))
	if err != nil {
		return "", err
	}
	name, err := snapshot.UniqueFileName(e.fsys, e.settings.SnapshotDir, d.ID, e.now(), e.settings.SnapshotExt)
	if err != nil {
		return "", err
	}
	if err := snapshot.Save(e.fsys, filepath.Join(e.settings.SnapshotDir, name), s); err != nil {
		return "", err
	}
	e.registry.UpdateWithSnapshot(d.ID, name)

	e.log.Info().
		Int("id", d.ID).
		Str("file", name).
		Int("dirs", len(s.Dirs)).
		Int("files", len(s.Files)).
		Msg("took snapshot")
	return name, nil
}

// LoadSnapshot reads a snapshot file. Bare names are looked up in the
// snapshot store.
func (e *Engine) LoadSnapshot(file string) (snapshot.Snapshot, error) {
	return snapshot.Load(e.fsys, snapshot.Resolve(e.settings.SnapshotDir, file))
}

// CompareSnapshots diffs two snapshot files as ordered path sequences.
func (e *Engine) CompareSnapshots(older, newer string) (snapshot.Diff, error) {
	return e.compare(older, newer, snapshot.Compare)
}

// CompareSnapshotSets diffs two snapshot files as path sets.
func (e *Engine) CompareSnapshotSets(older, newer string) (snapshot.Diff, error) {
	return e.compare(older, newer, snapshot.CompareSets)
}

func (e *Engine) compare(older, newer string, diff func(a, b snapshot.Snapshot) snapshot.Diff) (snapshot.Diff, error) {
	a, err := e.LoadSnapshot(older)
	if err != nil {
		return snapshot.Diff{}, err
	}
	b, err := e.LoadSnapshot(newer)
	if err != nil {
		return snapshot.Diff{}, err
	}
	return diff(a, b), nil
}

// SaveRegistry writes the registry to disk.
func (e *Engine) SaveRegistry() error {
	return e.registry.Save(e.settings.RegistryFile)
}

// NormalizePath returns path as an absolute, cleaned, forward-slash path.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.ToSlash(abs), nil
}
