package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abinit/psrepos/internal/bundletest"
	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/registry"
)

func newTestInstaller(srv *bundletest.Server, opts ...Option) *Installer {
	base := []Option{
		WithHTTPClient(srv.Client()),
		WithRetryInterval(time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

// descriptor returns the named fixture descriptor after registry defaults
// have been applied.
func descriptor(t *testing.T, d registry.Descriptor) registry.Descriptor {
	t.Helper()
	if d.URL == "" {
		d.URL = "https://example.org/" + bundletest.ArchiveName(d)
	}
	reg, err := registry.New(d)
	require.NoError(t, err)
	got, ok := reg.Lookup(d.ID)
	require.True(t, ok)
	return got
}

// assertNoTrace checks that nothing but the lock file is left under root.
func assertNoTrace(t *testing.T, d registry.Descriptor, root string) {
	t.Helper()
	assert.False(t, registry.IsInstalled(d, root))
	assert.NoDirExists(t, registry.DirectoryFor(d, root))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, filepath.Base(lockPath(d, root)), e.Name(), "unexpected entry left under root")
	}
}

func TestInstallFlipsIsInstalled(t *testing.T) {
	srv := bundletest.NewServer(t)
	reg := srv.Registry(bundletest.Descriptors()...)
	root := t.TempDir()
	in := newTestInstaller(srv)

	for _, d := range reg.All() {
		require.False(t, registry.IsInstalled(d, root))
		require.NoError(t, in.Install(context.Background(), d, root), d.Name)
		assert.True(t, registry.IsInstalled(d, root), d.Name)

		rec, err := manifest.ReadRecord(filepath.Join(registry.DirectoryFor(d, root), registry.InstallRecordFile))
		require.NoError(t, err)
		assert.Equal(t, d.ID, rec.ID)
		assert.Equal(t, registry.DirName(d), rec.DirName)
		assert.Equal(t, d.URL, rec.URL)
		assert.NotEmpty(t, rec.ArchiveDigest)
		assert.Len(t, rec.Files, len(bundletest.Bundle(d)))
		assert.NotContains(t, rec.Files, registry.InstallRecordFile)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "staging directory left behind")
	}
}

func TestInstallAlreadyInstalledIsNoop(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))
	root := t.TempDir()
	in := newTestInstaller(srv)

	require.NoError(t, in.Install(context.Background(), d, root))
	require.NoError(t, in.Install(context.Background(), d, root))
	assert.Equal(t, 1, srv.Hits(bundletest.ArchiveName(d)))
}

func TestInstallTruncatedArchiveLeavesNothing(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := descriptor(t, bundletest.Descriptors()[0])
	data := bundletest.TarGz(t, registry.DirName(d), bundletest.Bundle(d))
	d.URL = srv.Add(bundletest.ArchiveName(d), data[:len(data)/2])
	root := t.TempDir()

	err := newTestInstaller(srv).Install(context.Background(), d, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchiveCorrupt)
	assertNoTrace(t, d, root)
}

func TestInstallCanceledBeforeCommitLeavesNothing(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[1]))
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := newTestInstaller(srv)
	in.beforeCommit = func(string) error {
		cancel()
		return nil
	}

	err := in.Install(ctx, d, root)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoTrace(t, d, root)
}

func TestInstallCanceledContext(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestInstaller(srv).Install(ctx, d, root)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, registry.IsInstalled(d, root))
	assert.NoDirExists(t, registry.DirectoryFor(d, root))
}

func TestInstallFailureBeforeCommitLeavesNothing(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[2]))
	root := t.TempDir()

	boom := errors.New("disk full")
	in := newTestInstaller(srv)
	var staged string
	in.beforeCommit = func(dir string) error {
		staged = dir
		assert.FileExists(t, filepath.Join(dir, registry.InstallRecordFile))
		return boom
	}

	err := in.Install(context.Background(), d, root)
	assert.ErrorIs(t, err, boom)
	assert.NoDirExists(t, staged)
	assertNoTrace(t, d, root)
}

func TestInstallRetriesServerErrors(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))
	srv.FailNext(bundletest.ArchiveName(d), http.StatusInternalServerError, http.StatusServiceUnavailable)
	root := t.TempDir()

	require.NoError(t, newTestInstaller(srv).Install(context.Background(), d, root))
	assert.True(t, registry.IsInstalled(d, root))
	assert.Equal(t, 3, srv.Hits(bundletest.ArchiveName(d)))
}

func TestInstallGivesUpAfterRetries(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))
	name := bundletest.ArchiveName(d)
	srv.FailNext(name, 500, 500, 500, 500, 500)
	root := t.TempDir()

	err := newTestInstaller(srv, WithRetries(2)).Install(context.Background(), d, root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 500, netErr.StatusCode)
	assert.True(t, netErr.Retryable())
	assert.Equal(t, 3, srv.Hits(name))
	assertNoTrace(t, d, root)
}

func TestInstallNotFoundIsNotRetried(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := descriptor(t, bundletest.Descriptors()[0])
	d.URL = srv.URL + "/missing.tar.gz"
	root := t.TempDir()

	err := newTestInstaller(srv).Install(context.Background(), d, root)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
	assert.False(t, netErr.Retryable())
	assert.Equal(t, 1, srv.Hits("missing.tar.gz"))
	assertNoTrace(t, d, root)
}

func TestInstallArchiveDigest(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := descriptor(t, bundletest.Descriptors()[0])
	data := bundletest.TarGz(t, registry.DirName(d), bundletest.Bundle(d))
	d.URL = srv.Add(bundletest.ArchiveName(d), data)

	t.Run("mismatch", func(t *testing.T) {
		bad := d
		bad.ArchiveDigest = digest.FromString("something else")
		root := t.TempDir()
		err := newTestInstaller(srv).Install(context.Background(), bad, root)
		assert.ErrorIs(t, err, ErrArchiveCorrupt)
		assertNoTrace(t, bad, root)
	})

	t.Run("match", func(t *testing.T) {
		good := d
		good.ArchiveDigest = digest.FromBytes(data)
		root := t.TempDir()
		require.NoError(t, newTestInstaller(srv).Install(context.Background(), good, root))
		rec, err := manifest.ReadRecord(filepath.Join(registry.DirectoryFor(good, root), registry.InstallRecordFile))
		require.NoError(t, err)
		assert.Equal(t, good.ArchiveDigest, rec.ArchiveDigest)
	})

	t.Run("sha512", func(t *testing.T) {
		good := d
		good.ArchiveDigest = digest.SHA512.FromBytes(data)
		root := t.TempDir()
		require.NoError(t, newTestInstaller(srv).Install(context.Background(), good, root))
	})
}

func TestInstallRejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	payload := []byte("evil")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(payload))}))
	_, err := tw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	srv := bundletest.NewServer(t)
	d := descriptor(t, bundletest.Descriptors()[0])
	d.URL = srv.Add(bundletest.ArchiveName(d), buf.Bytes())
	parent := t.TempDir()
	root := filepath.Join(parent, "pseudos")
	require.NoError(t, os.Mkdir(root, 0o755))

	err = newTestInstaller(srv).Install(context.Background(), d, root)
	assert.ErrorIs(t, err, ErrArchiveCorrupt)
	assert.NoFileExists(t, filepath.Join(parent, "evil.txt"))
	assertNoTrace(t, d, root)
}

func TestInstallArchiveLayouts(t *testing.T) {
	d := descriptor(t, bundletest.Descriptors()[2])
	files := bundletest.Bundle(d)

	tests := []struct {
		name    string
		archive string
		data    func(t *testing.T) []byte
	}{
		{"zip with top directory", "bundle.zip", func(t *testing.T) []byte { return bundletest.Zip(t, "JTH-PBE", files) }},
		{"flat zip", "bundle.zip", func(t *testing.T) []byte { return bundletest.Zip(t, "", files) }},
		{"flat tar.gz", "bundle.tar.gz", func(t *testing.T) []byte { return bundletest.TarGz(t, "", files) }},
		{"dotted tar.gz", "bundle.tgz", func(t *testing.T) []byte { return bundletest.TarGz(t, ".", files) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := bundletest.NewServer(t)
			dd := d
			dd.URL = srv.Add(tt.archive, tt.data(t))
			root := t.TempDir()

			require.NoError(t, newTestInstaller(srv).Install(context.Background(), dd, root))
			assert.True(t, registry.IsInstalled(dd, root))
			for name := range files {
				assert.FileExists(t, filepath.Join(registry.DirectoryFor(dd, root), filepath.FromSlash(name)))
			}
		})
	}
}

func TestInstallRejectsBadBundles(t *testing.T) {
	d := descriptor(t, bundletest.Descriptors()[0])
	firstFile := bundletest.PseudoFile(d, registry.TierStandard, bundletest.DefaultElements[0])
	lastFile := bundletest.PseudoFile(d, registry.TierStringent, bundletest.DefaultElements[2])

	tests := []struct {
		name   string
		mutate func(files map[string][]byte)
	}{
		{"missing tier table", func(files map[string][]byte) { delete(files, "stringent.json") }},
		{"invalid table", func(files map[string][]byte) { files["standard.json"] = []byte(`{"pseudos": {}}`) }},
		{"referenced file missing", func(files map[string][]byte) { delete(files, lastFile) }},
		{"declared digest mismatch", func(files map[string][]byte) { files[firstFile] = []byte("tampered") }},
		{"file entry where a directory follows", func(files map[string][]byte) {
			files[filepath.Dir(firstFile)] = []byte("shadows a directory")
		}},
		{"not an archive", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := bundletest.NewServer(t)
			dd := d
			if tt.mutate == nil {
				dd.URL = srv.Add("bundle.tar.gz", []byte("plain text, not an archive"))
			} else {
				files := bundletest.Bundle(d)
				tt.mutate(files)
				dd.URL = srv.Add("bundle.tar.gz", bundletest.TarGz(t, "top", files))
			}
			root := t.TempDir()

			err := newTestInstaller(srv).Install(context.Background(), dd, root)
			assert.ErrorIs(t, err, ErrArchiveCorrupt)
			assert.NotErrorIs(t, err, ErrFilesystem)
			assertNoTrace(t, dd, root)
		})
	}
}

func TestInstallUsesMirror(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := descriptor(t, bundletest.Descriptors()[0])
	name := bundletest.ArchiveName(d)
	srv.Add("mirror/"+name, bundletest.TarGz(t, registry.DirName(d), bundletest.Bundle(d)))
	d.URL = "https://unreachable.invalid/releases/" + name
	root := t.TempDir()

	in := newTestInstaller(srv, WithMirror(srv.URL+"/mirror/"))
	require.NoError(t, in.Install(context.Background(), d, root))
	assert.Equal(t, 1, srv.Hits("mirror/"+name))
	assert.True(t, registry.IsInstalled(d, root))
}

func TestInstallMissingRoot(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))

	err := newTestInstaller(srv).Install(context.Background(), d, filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, ErrFilesystem)
	assert.Zero(t, srv.Hits(bundletest.ArchiveName(d)))
}

func TestInstallReplacesStaleDirectory(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))
	root := t.TempDir()
	stale := registry.DirectoryFor(d, root)
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "leftover"), []byte("x"), 0o644))

	require.NoError(t, newTestInstaller(srv).Install(context.Background(), d, root))
	assert.True(t, registry.IsInstalled(d, root))
	assert.NoFileExists(t, filepath.Join(stale, "leftover"))
}

func TestConcurrentInstallsAreIdempotent(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[1]))
	root := t.TempDir()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = newTestInstaller(srv).Install(context.Background(), d, root)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, registry.IsInstalled(d, root))
	assert.Equal(t, 1, srv.Hits(bundletest.ArchiveName(d)))
}

func TestInstallAllCollectsEveryFailure(t *testing.T) {
	srv := bundletest.NewServer(t)
	reg := srv.Registry(bundletest.Descriptors()...)
	descs := reg.All()
	descs[1].URL = srv.URL + "/gone.tar.gz"
	root := t.TempDir()

	res := newTestInstaller(srv).InstallAll(context.Background(), descs, root, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 2, res.Failures[0].Item.ID)
	assert.ErrorIs(t, res.Err(), ErrNetwork)
	require.Len(t, res.Succeeded, 2)
	assert.Equal(t, 1, res.Succeeded[0].ID)
	assert.Equal(t, 3, res.Succeeded[1].ID)
	assert.True(t, registry.IsInstalled(descs[0], root))
	assert.True(t, registry.IsInstalled(descs[2], root))
}

func TestInstallProgressOutput(t *testing.T) {
	srv := bundletest.NewServer(t)
	d := srv.Publish(descriptor(t, bundletest.Descriptors()[0]))

	var quiet, verbose bytes.Buffer
	require.NoError(t, newTestInstaller(srv, WithProgress(&quiet)).Install(context.Background(), d, t.TempDir()))
	require.NoError(t, newTestInstaller(srv, WithProgress(&verbose), WithVerbosity(1)).Install(context.Background(), d, t.TempDir()))

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "Downloading "+bundletest.ArchiveName(d))
	assert.Contains(t, verbose.String(), "100%")
}
