package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureDescriptors returns a small NC/PAW mix with ids 1..5.
func fixtureDescriptors() []Descriptor {
	return []Descriptor{
		{ID: 1, Category: NC, XC: "PBE", Relativity: ScalarRelativistic, Format: FormatPSP8, Version: "0.4", URL: "https://example.org/1.tar.gz"},
		{ID: 2, Category: NC, XC: "PBE", Relativity: FullyRelativistic, Format: FormatPSP8, Version: "0.4", URL: "https://example.org/2.tar.gz"},
		{ID: 3, Category: PAW, XC: "PBE", Format: FormatPAWXML, Version: "1.1", URL: "https://example.org/3.tar.gz"},
		{ID: 4, Category: NC, XC: "PBE", Relativity: ScalarRelativistic, Format: FormatPSP8, Version: "0.5", URL: "https://example.org/4.tar.gz"},
		{ID: 5, Category: NC, XC: "LDA", Relativity: ScalarRelativistic, Format: FormatUPF2, Version: "0.4", URL: "https://example.org/5.tar.gz"},
	}
}

func newFixtureRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(fixtureDescriptors()...)
	require.NoError(t, err)
	return reg
}

// fakeInstall writes the marker set of d under root without any real content.
func fakeInstall(t *testing.T, d Descriptor, root string) string {
	t.Helper()
	dir := DirectoryFor(d, root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, m := range MarkerFiles(d) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m), []byte("{}"), 0o644))
	}
	return dir
}
