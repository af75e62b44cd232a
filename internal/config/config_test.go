package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestReposRootFromEnv(t *testing.T) {
	t.Cleanup(viper.Reset)
	root := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ABIPS_REPOS_ROOT", root)

	Load()

	if got := ReposRoot(); got != root {
		t.Errorf("ReposRoot() = %q, want %q", got, root)
	}
}

func TestDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)

	Load()

	want := filepath.Join(home, ".abinit", "pseudos")
	if got := ReposRoot(); got != want {
		t.Errorf("ReposRoot() = %q, want %q", got, want)
	}
	if got := GetInt(KeyRetries); got != DefaultRetries {
		t.Errorf("retries = %d, want %d", got, DefaultRetries)
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	Load()

	if err := Set("catalog_repo", "x"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetPersists(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	Load()

	if err := Set(KeyMirror, "https://mirror.example.org/pseudos"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	viper.Reset()
	Load()
	if got := Get(KeyMirror); got != "https://mirror.example.org/pseudos" {
		t.Errorf("mirror = %q after reload", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := expandHome("~/pseudos"); got != filepath.Join(home, "pseudos") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("expandHome(abs) = %q", got)
	}
}
