package installer

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the archive could not be fetched.
	ErrNetwork = errors.New("network error")
	// ErrArchiveCorrupt indicates the fetched bytes do not form a valid bundle.
	ErrArchiveCorrupt = errors.New("archive corrupt")
	// ErrFilesystem indicates a local filesystem failure (permissions, space).
	ErrFilesystem = errors.New("filesystem error")
)

// NetworkError reports a failed fetch. Temporary failures (transport
// errors, 5xx, 429) are retried; the rest are not.
type NetworkError struct {
	URL        string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: server returned status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error        { return e.Err }
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// Retryable reports whether the caller may retry the fetch.
func (e *NetworkError) Retryable() bool { return e.Temporary }

// ArchiveCorruptError reports an archive that cannot be unpacked into a
// usable bundle. Retrying requires a fresh download.
type ArchiveCorruptError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ArchiveCorruptError) Error() string {
	msg := fmt.Sprintf("corrupt archive %s: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArchiveCorruptError) Unwrap() error        { return e.Err }
func (e *ArchiveCorruptError) Is(target error) bool { return target == ErrArchiveCorrupt }

// FilesystemError reports a local I/O failure. It is never retried.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error        { return e.Err }
func (e *FilesystemError) Is(target error) bool { return target == ErrFilesystem }

func fsError(op, path string, err error) error {
	return &FilesystemError{Op: op, Path: path, Err: err}
}

func corrupt(url, reason string, err error) error {
	return &ArchiveCorruptError{URL: url, Reason: reason, Err: err}
}
