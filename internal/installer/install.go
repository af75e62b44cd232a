package installer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/abinit/psrepos/internal/batch"
	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/platform"
	"github.com/abinit/psrepos/internal/registry"
)

// Install downloads and unpacks d into its directory under root. root must
// already exist. Installing a repository that is already installed does
// nothing.
//
// The bundle is assembled in a hidden staging directory and renamed into
// place only after every table has been checked and the install record
// written. On any failure, including cancellation, the staging directory
// is removed and DirectoryFor(d, root) is left untouched.
func (in *Installer) Install(ctx context.Context, d registry.Descriptor, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fsError("checking repository root", root, err)
	}
	if !info.IsDir() {
		return fsError("checking repository root", root, errors.New("not a directory"))
	}

	release, err := in.acquire(ctx, d, root)
	if err != nil {
		return err
	}
	defer release()

	final := registry.DirectoryFor(d, root)
	if registry.IsInstalled(d, root) {
		in.logger.Info("repository already installed", "id", d.ID, "name", d.Name, "dir", final)
		return nil
	}

	staging, err := os.MkdirTemp(root, ".tmp-"+registry.DirName(d)+"-")
	if err != nil {
		return fsError("creating staging directory", root, err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			in.logger.Warn("removing staging directory", "path", staging, "error", err)
		}
	}()

	url := in.archiveURL(d.URL)
	in.logger.Info("installing repository", "id", d.ID, "name", d.Name, "url", url)

	archive := filepath.Join(staging, "archive")
	archiveDigest, err := in.download(ctx, url, archive)
	if err != nil {
		return err
	}
	if err := verifyArchive(archive, url, d.ArchiveDigest, archiveDigest); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unpacked := filepath.Join(staging, "unpacked")
	if err := os.Mkdir(unpacked, platform.DirPerm); err != nil {
		return fsError("creating directory", unpacked, err)
	}
	if err := in.extract(ctx, archive, url, unpacked); err != nil {
		return err
	}
	bundle, err := bundleRoot(unpacked)
	if err != nil {
		return err
	}

	files, err := hashBundle(ctx, bundle)
	if err != nil {
		return err
	}
	if err := checkTables(d, bundle, url, files); err != nil {
		return err
	}

	rec := &manifest.InstallRecord{
		ID:            d.ID,
		Name:          d.Name,
		DirName:       registry.DirName(d),
		Version:       d.Version,
		URL:           url,
		ArchiveDigest: archiveDigest,
		InstalledAt:   time.Now().UTC(),
		Files:         files,
	}
	if err := manifest.WriteRecord(filepath.Join(bundle, registry.InstallRecordFile), rec); err != nil {
		return fsError("writing install record", bundle, err)
	}

	if in.beforeCommit != nil {
		if err := in.beforeCommit(bundle); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var leftover *platform.CleanupError
	if err := platform.ReplaceDir(bundle, final); errors.As(err, &leftover) {
		in.logger.Warn("removing replaced directory", "path", leftover.Path, "error", leftover.Err)
	} else if err != nil {
		return fsError("moving bundle into place", final, err)
	}

	in.logger.Info("repository installed", "id", d.ID, "name", d.Name, "dir", final, "files", len(files))
	return nil
}

// InstallAll installs every descriptor with at most jobs concurrent
// installs. A failure never stops the others.
func (in *Installer) InstallAll(ctx context.Context, descs []registry.Descriptor, root string, jobs int) batch.Result[registry.Descriptor] {
	return batch.Run(ctx, descs, jobs, func(ctx context.Context, d registry.Descriptor) error {
		return in.Install(ctx, d, root)
	})
}

// verifyArchive compares the downloaded archive against the digest declared
// in the registry. got is the canonical digest computed while downloading.
func verifyArchive(archive, url string, want, got digest.Digest) error {
	if want == "" {
		return nil
	}
	if want.Algorithm() != got.Algorithm() {
		var err error
		got, err = manifest.DigestFile(archive, want.Algorithm())
		if err != nil {
			return fsError("hashing archive", archive, err)
		}
	}
	if got != want {
		return corrupt(url, fmt.Sprintf("archive digest %s does not match %s", got, want), nil)
	}
	return nil
}

// hashBundle returns the canonical digest of every regular file below
// bundle, keyed by slash-separated bundle path.
func hashBundle(ctx context.Context, bundle string) (map[string]digest.Digest, error) {
	files := map[string]digest.Digest{}
	err := filepath.WalkDir(bundle, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return fsError("walking bundle", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(bundle, p)
		if err != nil {
			return fsError("walking bundle", p, err)
		}
		rel = filepath.ToSlash(rel)
		if rel == registry.InstallRecordFile {
			return nil
		}
		dg, err := manifest.DigestFile(p, digest.Canonical)
		if err != nil {
			return fsError("hashing", p, err)
		}
		files[rel] = dg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// checkTables requires every tier table of d to be present and valid, every
// file it references to exist, and every declared digest to match.
func checkTables(d registry.Descriptor, bundle, url string, files map[string]digest.Digest) error {
	for _, tier := range d.Tiers() {
		name := registry.TableFile(d, tier)
		if _, ok := files[name]; !ok {
			return corrupt(url, "missing table "+name, nil)
		}
		t, err := manifest.ReadTable(filepath.Join(bundle, filepath.FromSlash(name)))
		if err != nil {
			return corrupt(url, "invalid table "+name, err)
		}
		for _, sym := range t.Elements() {
			ref := t.Pseudos[sym]
			got, ok := files[ref.File]
			if !ok {
				return corrupt(url, fmt.Sprintf("table %s: %s refers to missing file %s", name, sym, ref.File), nil)
			}
			if ref.Digest == "" {
				continue
			}
			if ref.Digest.Algorithm() != got.Algorithm() {
				p := filepath.Join(bundle, filepath.FromSlash(ref.File))
				if got, err = manifest.DigestFile(p, ref.Digest.Algorithm()); err != nil {
					return corrupt(url, "hashing "+ref.File, err)
				}
			}
			if got != ref.Digest {
				return corrupt(url, fmt.Sprintf("table %s: %s digest %s does not match %s", name, ref.File, got, ref.Digest), nil)
			}
		}
	}
	return nil
}
