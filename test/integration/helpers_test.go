//go:build integration

package integration_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abinit/psrepos/internal/bundletest"
	"github.com/abinit/psrepos/internal/installer"
	"github.com/abinit/psrepos/internal/registry"
)

// testEnv holds an isolated repository root and a server publishing the
// fixture repositories.
type testEnv struct {
	HomeDir   string // HOME, so ~/.abinit never leaks into the test
	ReposRoot string // ABIPS_REPOS_ROOT
	Server    *bundletest.Server
	Registry  *registry.Registry
}

// setupTestEnv creates isolated temp directories and sets environment variables
// so all operations are sandboxed. The env vars are restored after the test.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:   t.TempDir(),
		ReposRoot: filepath.Join(t.TempDir(), "pseudos"),
	}
	t.Setenv("HOME", env.HomeDir)
	t.Setenv("ABIPS_REPOS_ROOT", env.ReposRoot)

	if err := os.MkdirAll(env.ReposRoot, 0755); err != nil {
		t.Fatalf("creating repository root: %v", err)
	}

	env.Server = bundletest.NewServer(t)
	env.Registry = env.Server.Registry(bundletest.Descriptors()...)
	return env
}

func (env *testEnv) installer() *installer.Installer {
	return installer.New(
		installer.WithHTTPClient(env.Server.Client()),
		installer.WithRetryInterval(time.Millisecond),
		installer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (env *testEnv) descriptors(t *testing.T, ids ...int) []registry.Descriptor {
	t.Helper()
	descs, err := env.Registry.ByIDs(ids...)
	if err != nil {
		t.Fatalf("ByIDs(%v): %v", ids, err)
	}
	return descs
}

// writeFile creates a file at the given path with the given content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating dir %s: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// assertDirExists fails the test if the directory does not exist.
func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory to exist: %s (error: %v)", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory, but it is a file", path)
	}
}

// assertNotExists fails the test if path exists.
func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected %s NOT to exist", path)
	}
}
