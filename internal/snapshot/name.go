package snapshot

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	namePrefix = "snapshot"
	timeLayout = "20060102150405"
)

// FileName returns the snapshot file name for directory id taken at t,
// e.g. snapshot-3-20240131235959.snp.
func FileName(id int, t time.Time, ext string) string {
	return fmt.Sprintf("%s-%d-%s%s", namePrefix, id, t.Format(timeLayout), ext)
}

// UniqueFileName returns FileName unless a file of that name already exists
// in dir, in which case a -1, -2, ... suffix is added before the extension.
func UniqueFileName(fsys afero.Fs, dir string, id int, t time.Time, ext string) (string, error) {
	base := strings.TrimSuffix(FileName(id, t, ext), ext)
	name := base + ext
	for i := 1; ; i++ {
		exists, err := afero.Exists(fsys, filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("check snapshot name %s: %w", name, err)
		}
		if !exists {
			return name, nil
		}
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
}

// ParseFileName extracts the directory id and capture time from a name
// produced by FileName or UniqueFileName. The time is in the local zone.
func ParseFileName(name string) (id int, t time.Time, ok bool) {
	name = filepath.Base(name)
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	parts := strings.Split(name, "-")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != namePrefix {
		return 0, time.Time{}, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, time.Time{}, false
	}
	t, err = time.ParseInLocation(timeLayout, parts[2], time.Local)
	if err != nil {
		return 0, time.Time{}, false
	}
	return id, t, true
}

// Resolve returns the location of a snapshot reference. Bare names live in
// dir; anything with a directory component is used as given.
func Resolve(dir, ref string) string {
	if filepath.IsAbs(ref) || strings.ContainsRune(ref, filepath.Separator) || strings.ContainsRune(ref, '/') {
		return ref
	}
	return filepath.Join(dir, ref)
}
