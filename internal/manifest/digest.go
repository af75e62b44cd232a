package manifest

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
)

// DigestFile computes the digest of the file at p with alg. An empty alg
// means digest.Canonical.
func DigestFile(p string, alg digest.Algorithm) (digest.Digest, error) {
	if alg == "" {
		alg = digest.Canonical
	}
	if !alg.Available() {
		return "", fmt.Errorf("digest algorithm %q is not available", alg)
	}
	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", p, err)
	}
	defer f.Close()

	dg, err := alg.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", p, err)
	}
	return dg, nil
}
