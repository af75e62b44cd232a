package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestDigestFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Si.psp8")
	if err := os.WriteFile(p, []byte("silicon"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := DigestFile(p, "")
	if err != nil {
		t.Fatalf("DigestFile: %v", err)
	}
	if want := digest.FromString("silicon"); got != want {
		t.Errorf("DigestFile = %s, want %s", got, want)
	}

	got, err = DigestFile(p, digest.SHA512)
	if err != nil {
		t.Fatalf("DigestFile(sha512): %v", err)
	}
	if want := digest.SHA512.FromString("silicon"); got != want {
		t.Errorf("DigestFile(sha512) = %s, want %s", got, want)
	}
}

func TestDigestFileErrors(t *testing.T) {
	if _, err := DigestFile(filepath.Join(t.TempDir(), "absent"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
	if _, err := DigestFile("whatever", digest.Algorithm("md5")); err == nil {
		t.Error("expected error for unavailable algorithm")
	}
}
