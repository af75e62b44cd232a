package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownRepositoryID indicates a requested id is not in the registry.
	ErrUnknownRepositoryID = errors.New("unknown repository id")
	// ErrUnrecognizedDirectoryName indicates a directory name does not encode a registered repository.
	ErrUnrecognizedDirectoryName = errors.New("unrecognized repository directory name")
	// ErrNotInstalled indicates the repository has no installed bundle under the root.
	ErrNotInstalled = errors.New("repository not installed")
	// ErrUnsupportedTier indicates the repository does not provide the requested accuracy tier.
	ErrUnsupportedTier = errors.New("unsupported accuracy tier")
)

// UnknownIDError names the offending id.
type UnknownIDError struct {
	ID int
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnknownRepositoryID, e.ID)
}

func (e *UnknownIDError) Is(target error) bool { return target == ErrUnknownRepositoryID }

// UnrecognizedDirectoryError names the directory that failed to parse.
type UnrecognizedDirectoryError struct {
	Name   string
	Reason string
}

func (e *UnrecognizedDirectoryError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %q", ErrUnrecognizedDirectoryName, e.Name)
	}
	return fmt.Sprintf("%s %q: %s", ErrUnrecognizedDirectoryName, e.Name, e.Reason)
}

func (e *UnrecognizedDirectoryError) Is(target error) bool {
	return target == ErrUnrecognizedDirectoryName
}

// NotInstalledError identifies the repository and the directory that was expected.
type NotInstalledError struct {
	ID   int
	Name string
	Dir  string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("repository #%d %s is not installed in %s", e.ID, e.Name, e.Dir)
}

func (e *NotInstalledError) Is(target error) bool { return target == ErrNotInstalled }

// UnsupportedTierError lists the tiers that are available instead.
type UnsupportedTierError struct {
	ID        int
	Name      string
	Tier      Tier
	Available []Tier
}

func (e *UnsupportedTierError) Error() string {
	avail := make([]string, len(e.Available))
	for i, t := range e.Available {
		avail[i] = string(t)
	}
	return fmt.Sprintf("repository #%d %s has no %q tier (available: %s)",
		e.ID, e.Name, e.Tier, strings.Join(avail, ", "))
}

func (e *UnsupportedTierError) Is(target error) bool { return target == ErrUnsupportedTier }
