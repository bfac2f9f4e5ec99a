package stage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// tempPattern prefixes temporary files so they never collide with, or
// look like, a finished artifact.
const tempPattern = ".tarfetch-*"

// AtomicFile is an io.Writer that stages bytes in a temporary sibling of
// the destination path. Nothing is visible at the destination until
// Commit succeeds.
type AtomicFile struct {
	file     *os.File
	path     string
	mode     os.FileMode
	finished bool
}

// CreateAtomic opens a temp file in the directory of path, which must
// already exist.
func CreateAtomic(path string, mode os.FileMode) (*AtomicFile, error) {
	if path == "" {
		return nil, errors.New("path must not be empty")
	}

	file, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp file: %w", ErrStagingIO, err)
	}

	return &AtomicFile{file: file, path: path, mode: mode}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.file.Write(p)
}

// TempName returns the path of the temporary file.
func (a *AtomicFile) TempName() string { return a.file.Name() }

// Path returns the destination path.
func (a *AtomicFile) Path() string { return a.path }

// Commit flushes the temp file to disk and renames it onto the destination.
func (a *AtomicFile) Commit() error {
	if a.finished {
		return errors.New("atomic file already finished")
	}

	if err := a.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp file: %w", ErrStagingIO, err)
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %w", ErrStagingIO, err)
	}
	if err := os.Chmod(a.file.Name(), a.mode); err != nil {
		return fmt.Errorf("%w: chmod temp file: %w", ErrStagingIO, err)
	}
	if err := os.Rename(a.file.Name(), a.path); err != nil {
		return fmt.Errorf("%w: renaming temp file: %w", ErrStagingIO, err)
	}

	a.finished = true

	return nil
}

// Discard closes and removes the temp file. It is a no-op after Commit
// and safe to call more than once.
func (a *AtomicFile) Discard() error {
	if a.finished {
		return nil
	}
	a.finished = true

	var errs []error
	if err := a.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("closing temp file: %w", err))
	}
	if err := os.Remove(a.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("removing temp file: %w", err))
	}

	return errors.Join(errs...)
}
