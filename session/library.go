package session

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-annotate/common"
	"github.com/nvr-ai/go-annotate/mux"
)

// FSLibrary persists finished assets into a directory, assigning each a
// fresh identifier. It stands in for a platform media library: Allowed
// models the user-facing save permission, and refusing it is reported as
// ErrPermissionDenied rather than a failure.
type FSLibrary struct {
	Dir     string
	Allowed bool
}

// NewFSLibrary creates a library rooted at dir with permission granted.
func NewFSLibrary(dir string) *FSLibrary {
	return &FSLibrary{Dir: dir, Allowed: true}
}

// Save implements Library. The temporary file is moved, not copied; on
// denial it is left untouched at its original path.
func (l *FSLibrary) Save(path string) (string, error) {
	if !l.Allowed {
		return "", common.ErrPermissionDenied
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating library directory")
	}

	id := uuid.NewString()
	dest := filepath.Join(l.Dir, id+filepath.Ext(path))
	if err := os.Rename(path, dest); err != nil {
		return "", errors.Wrapf(err, "moving %s into library", path)
	}

	// The metadata sidecar travels with its asset when one was written.
	if sidecar := mux.SidecarPath(path); exists(sidecar) {
		if err := os.Rename(sidecar, mux.SidecarPath(dest)); err != nil {
			return "", errors.Wrapf(err, "moving sidecar for %s", path)
		}
	}
	return id, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
