package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/abinit/psrepos/internal/registry"
)

// lockPath returns the lock file guarding the installation of d under root.
func lockPath(d registry.Descriptor, root string) string {
	return filepath.Join(root, "."+registry.DirName(d)+".lock")
}

// acquire blocks until the install lock for d is held or ctx is done. The
// returned func releases it. Lock files are left in place.
func (in *Installer) acquire(ctx context.Context, d registry.Descriptor, root string) (func(), error) {
	p := lockPath(d, root)
	fl := flock.New(p)
	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fsError("locking", p, err)
	}
	if !locked {
		return nil, fsError("locking", p, fmt.Errorf("lock not acquired"))
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			in.logger.Warn("releasing install lock", "path", p, "error", err)
		}
	}, nil
}
