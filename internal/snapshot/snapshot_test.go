package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, fsys afero.Fs, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if f[len(f)-1] == '/' {
			require.NoError(t, fsys.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte("content"), 0o644))
	}
}

func TestCaptureOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeTree(t, fsys, "/root",
		"t1.txt",
		"t1 - Copy.txt",
		"some_test/t1 - Copy.txt",
		"some_test/deep/a.txt",
		"other/",
		"z.txt",
	)

	s, err := Capture(fsys, "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "some_test", "some_test/deep"}, s.Dirs)
	assert.Equal(t, []string{
		"t1 - Copy.txt",
		"t1.txt",
		"z.txt",
		"some_test/t1 - Copy.txt",
		"some_test/deep/a.txt",
	}, s.Files)
}

func TestCaptureEmptyDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/empty", 0o755))

	s, err := Capture(fsys, "/empty")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{Dirs: []string{}, Files: []string{}}, s)
}

func TestCaptureMissingRoot(t *testing.T) {
	_, err := Capture(afero.NewMemMapFs(), "/missing")
	assert.ErrorIs(t, err, ErrCapture)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCaptureRootIsFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/file", nil, 0o644))

	_, err := Capture(fsys, "/file")
	assert.ErrorIs(t, err, ErrCapture)
}

func TestCaptureUnreadableSubdirectory(t *testing.T) {
	fsys := &deniedOpenFs{Fs: afero.NewMemMapFs(), deny: map[string]bool{"/r/b": true}}
	writeTree(t, fsys, "/r", "a.txt", "b/c.txt", "d/e.txt")

	s, err := Capture(fsys, "/r")
	assert.ErrorIs(t, err, ErrCapture)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, Snapshot{}, s)
}

func TestCaptureFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	fsys := afero.NewOsFs()
	writeTree(t, fsys, root, "real/a.txt", "b.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "b.txt"), filepath.Join(root, "c.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	s, err := Capture(fsys, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"link", "real", "link/loop", "real/loop"}, s.Dirs)
	assert.Equal(t, []string{"b.txt", "c.txt", "dangling", "link/a.txt", "real/a.txt"}, s.Files)
}

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		s    Snapshot
	}{
		{"empty", Snapshot{Dirs: []string{}, Files: []string{}}},
		{"simple", Snapshot{
			Dirs:  []string{"some_test"},
			Files: []string{"t1 - Copy (2).txt", "t1 - Copy.txt", "t1.txt", "some_test/t1 - Copy.txt"},
		}},
		{"unicode", Snapshot{
			Dirs:  []string{"répertoire", "目录/子目录"},
			Files: []string{"répertoire/ñ.txt", "", "目录/子目录/文件"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tt.s))
			got, err := Read(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.s, got)
		})
	}
}

func TestCodecFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Snapshot{Dirs: []string{"d"}, Files: []string{"f1", "ab"}}))
	assert.Equal(t, []byte{1, 1, 'd', 2, 2, 'f', '1', 2, 'a', 'b'}, buf.Bytes())
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"missing files", []byte{1, 1, 'd'}},
		{"truncated entry", []byte{1, 5, 'd'}},
		{"trailing data", []byte{0, 0, 7}},
		{"oversized entry", []byte{1, 0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/snaps", 0o755))
	s := Snapshot{Dirs: []string{"a"}, Files: []string{"a/b.txt"}}

	require.NoError(t, Save(fsys, "/snaps/one.snp", s))
	got, err := Load(fsys, "/snaps/one.snp")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = Load(fsys, "/snaps/missing.snp")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveReadOnly(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := Save(fsys, "/one.snp", Snapshot{})
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	a := Snapshot{
		Dirs:  []string{"some_test"},
		Files: []string{"t1 - Copy (2).txt", "t1 - Copy.txt", "t1.txt", "some_test/t1 - Copy.txt"},
	}
	b := Snapshot{
		Dirs:  []string{"some_test", "new_test"},
		Files: []string{"t1 - Copy (2).txt", "some_test/t1 - Copy.txt", "new_test/t1.txt", "some_test/t2.txt"},
	}

	d := Compare(a, b)
	assert.Equal(t, []string{"new_test"}, d.AddedDirs)
	assert.Equal(t, []string{"new_test/t1.txt", "some_test/t2.txt"}, d.AddedFiles)
	assert.Equal(t, []string{}, d.RemovedDirs)
	assert.Equal(t, []string{"t1 - Copy.txt", "t1.txt"}, d.RemovedFiles)
	assert.False(t, d.Empty())
}

func TestCompareIdentical(t *testing.T) {
	s := Snapshot{Dirs: []string{"a", "b"}, Files: []string{"a/x", "b/y"}}
	assert.True(t, Compare(s, s).Empty())
	assert.True(t, CompareSets(s, s).Empty())
}

func TestCompareIsOrderSensitive(t *testing.T) {
	a := Snapshot{Dirs: []string{}, Files: []string{"x", "y"}}
	b := Snapshot{Dirs: []string{}, Files: []string{"y", "x"}}

	d := Compare(a, b)
	assert.Equal(t, []string{"y"}, d.AddedFiles)
	assert.Equal(t, []string{"y"}, d.RemovedFiles)

	assert.True(t, CompareSets(a, b).Empty())
}

func TestCompareSets(t *testing.T) {
	a := Snapshot{Dirs: []string{"keep", "gone"}, Files: []string{"f1", "f2", "f2"}}
	b := Snapshot{Dirs: []string{"new", "keep"}, Files: []string{"f3", "f1", "f3"}}

	d := CompareSets(a, b)
	assert.Equal(t, []string{"new"}, d.AddedDirs)
	assert.Equal(t, []string{"gone"}, d.RemovedDirs)
	assert.Equal(t, []string{"f3"}, d.AddedFiles)
	assert.Equal(t, []string{"f2"}, d.RemovedFiles)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 1, 31, 23, 59, 58, 0, time.Local)
	assert.Equal(t, "snapshot-3-20240131235958.snp", FileName(3, ts, ".snp"))

	id, parsed, ok := ParseFileName("/some/dir/snapshot-3-20240131235958-2.snp")
	require.True(t, ok)
	assert.Equal(t, 3, id)
	assert.True(t, ts.Equal(parsed))

	_, _, ok = ParseFileName("notes.txt")
	assert.False(t, ok)
	_, _, ok = ParseFileName("snapshot-x-20240131235958.snp")
	assert.False(t, ok)
}

func TestUniqueFileName(t *testing.T) {
	fsys := afero.NewMemMapFs()
	ts := time.Date(2024, 1, 31, 23, 59, 58, 0, time.Local)

	name, err := UniqueFileName(fsys, "/snaps", 0, ts, ".snp")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-0-20240131235958.snp", name)

	require.NoError(t, afero.WriteFile(fsys, "/snaps/"+name, nil, 0o644))
	name, err = UniqueFileName(fsys, "/snaps", 0, ts, ".snp")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-0-20240131235958-1.snp", name)

	require.NoError(t, afero.WriteFile(fsys, "/snaps/"+name, nil, 0o644))
	name, err = UniqueFileName(fsys, "/snaps", 0, ts, ".snp")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-0-20240131235958-2.snp", name)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/snaps", "a.snp"), Resolve("/snaps", "a.snp"))
	assert.Equal(t, "/elsewhere/a.snp", Resolve("/snaps", "/elsewhere/a.snp"))
	assert.Equal(t, "rel/a.snp", Resolve("/snaps", "rel/a.snp"))
}

type deniedOpenFs struct {
	afero.Fs
	deny map[string]bool
}

func (f *deniedOpenFs) Open(name string) (afero.File, error) {
	if f.deny[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}
