package registry

import (
	"errors"
	"fmt"
	"os"

	"github.com/leighmcculloch/dirsnap/internal/snapshot"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// removeSnapshotFiles deletes every referenced snapshot file. Files that are
// already gone count as deleted. It returns the references that could not be
// deleted along with the combined errors.
func removeSnapshotFiles(fsys afero.Fs, dir string, refs []string) (remaining []string, err error) {
	for _, ref := range refs {
		rmErr := fsys.Remove(snapshot.Resolve(dir, ref))
		if rmErr == nil || errors.Is(rmErr, os.ErrNotExist) {
			continue
		}
		remaining = append(remaining, ref)
		err = multierr.Append(err, fmt.Errorf("remove snapshot %s: %w", ref, rmErr))
	}
	return remaining, err
}
