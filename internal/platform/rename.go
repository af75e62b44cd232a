package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CleanupError reports a replaced directory that could not be removed once
// the new one was in place. The replacement itself succeeded.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("removing replaced directory %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// ReplaceDir moves the directory src to dst. An existing dst is first moved
// aside inside the same parent and removed after src is in place, so dst is
// never observed half-populated. A failure to remove the old directory is
// returned as *CleanupError.
func ReplaceDir(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if _, statErr := os.Lstat(dst); statErr != nil {
		return fmt.Errorf("renaming %s to %s: %w", src, dst, err)
	}

	aside, err := os.MkdirTemp(filepath.Dir(dst), ".old-"+filepath.Base(dst)+"-")
	if err != nil {
		return fmt.Errorf("creating holding directory: %w", err)
	}
	// MkdirTemp reserved the name; rename needs it free.
	if err := os.Remove(aside); err != nil {
		return fmt.Errorf("reserving holding directory: %w", err)
	}
	if err := os.Rename(dst, aside); err != nil {
		return fmt.Errorf("moving aside %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		if restoreErr := os.Rename(aside, dst); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("restoring %s: %w", dst, restoreErr))
		}
		return fmt.Errorf("renaming %s to %s: %w", src, dst, err)
	}
	if err := os.RemoveAll(aside); err != nil {
		return &CleanupError{Path: aside, Err: err}
	}
	return nil
}
