// Package bundletest builds repository bundles and serves them over HTTP
// for tests.
package bundletest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"

	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/registry"
)

// DefaultElements is used when no elements are given to Bundle.
var DefaultElements = []string{"H", "O", "Si"}

// PseudoFile returns the bundle path of the pseudopotential for element in
// the given tier.
func PseudoFile(d registry.Descriptor, tier registry.Tier, element string) string {
	if d.IsPAW() {
		return fmt.Sprintf("%s.GGA_%s-JTH.xml", element, d.XC)
	}
	if tier == registry.TierStringent {
		return fmt.Sprintf("%s/%s-high.%s", element, element, d.Format)
	}
	return fmt.Sprintf("%s/%s.%s", element, element, d.Format)
}

// Bundle returns the files of a valid bundle for d: one table per tier and
// one pseudopotential file per element and tier. The first element of each
// table declares its digest.
func Bundle(d registry.Descriptor, elements ...string) map[string][]byte {
	if len(elements) == 0 {
		elements = DefaultElements
	}
	files := map[string][]byte{}
	for _, tier := range d.Tiers() {
		table := manifest.Table{Tier: string(tier), Pseudos: map[string]manifest.PseudoRef{}}
		for i, el := range elements {
			p := PseudoFile(d, tier, el)
			content := []byte(fmt.Sprintf("%s pseudopotential for %s (%s)\n", el, registry.DirName(d), tier))
			files[p] = content
			ref := manifest.PseudoRef{File: p, Hints: map[string]float64{"low": 20, "normal": 30, "high": 40}}
			if i == 0 {
				ref.Digest = digest.FromBytes(content)
			}
			table.Pseudos[el] = ref
		}
		data, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			panic(err)
		}
		files[registry.TableFile(d, tier)] = data
	}
	return files
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TarGz packs files below the directory top (none when top is empty).
func TarGz(t testing.TB, top string, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	if top != "" {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: top + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
	}
	for _, name := range sortedNames(files) {
		data := files[name]
		hdr := &tar.Header{
			Name:     path.Join(top, name),
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(data)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

// Zip packs files below the directory top (none when top is empty).
func Zip(t testing.TB, top string, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		w, err := zw.Create(path.Join(top, name))
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Server serves archives by file name and counts requests.
type Server struct {
	*httptest.Server
	t testing.TB

	mu       sync.Mutex
	archives map[string][]byte
	hits     map[string]int
	failures map[string][]int
}

// NewServer starts a Server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		t:        t,
		archives: map[string][]byte{},
		hits:     map[string]int{},
		failures: map[string][]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.Lock()
	s.hits[name]++
	if q := s.failures[name]; len(q) > 0 {
		status := q[0]
		s.failures[name] = q[1:]
		s.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	data, ok := s.archives[name]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// Add serves data under name and returns its URL.
func (s *Server) Add(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[name] = data
	return s.URL + "/" + name
}

// FailNext makes the next requests for name answer with the given statuses,
// in order, before the archive is served.
func (s *Server) FailNext(name string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = append(s.failures[name], statuses...)
}

// Hits returns how many requests were made for name.
func (s *Server) Hits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

// ArchiveName returns the file name under which Publish serves d.
func ArchiveName(d registry.Descriptor) string {
	return registry.DirName(d) + ".tar.gz"
}

// Publish serves a valid bundle for d and returns d pointing at it.
func (s *Server) Publish(d registry.Descriptor, elements ...string) registry.Descriptor {
	s.t.Helper()
	data := TarGz(s.t, registry.DirName(d), Bundle(d, elements...))
	d.URL = s.Add(ArchiveName(d), data)
	return d
}

// Registry publishes a bundle for every descriptor and returns a registry
// of the published descriptors.
func (s *Server) Registry(descs ...registry.Descriptor) *registry.Registry {
	s.t.Helper()
	published := make([]registry.Descriptor, len(descs))
	for i, d := range descs {
		published[i] = s.Publish(d)
	}
	reg, err := registry.New(published...)
	require.NoError(s.t, err)
	return reg
}

// Descriptors returns a small NC/PAW mix with ids 1..3: two NC PBE psp8
// repositories (SR and FR) and one PAW PBE repository.
func Descriptors() []registry.Descriptor {
	return []registry.Descriptor{
		{ID: 1, Category: registry.NC, XC: "PBE", Relativity: registry.ScalarRelativistic, Format: registry.FormatPSP8, Version: "0.4"},
		{ID: 2, Category: registry.NC, XC: "PBE", Relativity: registry.FullyRelativistic, Format: registry.FormatPSP8, Version: "0.4"},
		{ID: 3, Category: registry.PAW, XC: "PBE", Format: registry.FormatPAWXML, Version: "1.1"},
	}
}
