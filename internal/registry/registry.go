package registry

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
	"go.yaml.in/yaml/v3"

	"github.com/abinit/psrepos/internal/branding"
)

//go:embed registry.yaml
var catalogYAML []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Registry is a read-only, ordered catalog of repository descriptors.
type Registry struct {
	descs []Descriptor
	byID  map[int]int // id -> index in descs
}

// catalogEntry is the YAML form of one descriptor in registry.yaml.
type catalogEntry struct {
	ID            int    `yaml:"id"`
	Name          string `yaml:"name,omitempty"`
	Category      string `yaml:"category"`
	XC            string `yaml:"xc"`
	Relativity    string `yaml:"relativity,omitempty"`
	Format        string `yaml:"format"`
	Version       string `yaml:"version"`
	URL           string `yaml:"url,omitempty"`
	ArchiveDigest string `yaml:"archive_digest,omitempty"`
}

type catalogFile struct {
	Repositories []catalogEntry `yaml:"repositories"`
}

// Default returns the process-wide registry built from the embedded catalog.
// The embedded catalog is part of the binary, so a malformed one panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(catalogYAML, branding.RegistryBaseURL())
		if err != nil {
			panic(fmt.Sprintf("registry: embedded catalog: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load parses a YAML catalog. Entries without a url get one derived from baseURL.
func Load(data []byte, baseURL string) (*Registry, error) {
	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	descs := make([]Descriptor, 0, len(cf.Repositories))
	for _, e := range cf.Repositories {
		d := Descriptor{
			ID:            e.ID,
			Name:          e.Name,
			Category:      Category(strings.ToLower(e.Category)),
			XC:            e.XC,
			Relativity:    Relativity(strings.ToUpper(e.Relativity)),
			Format:        Format(strings.ToLower(e.Format)),
			Version:       e.Version,
			URL:           e.URL,
			ArchiveDigest: digest.Digest(e.ArchiveDigest),
		}
		if d.URL == "" {
			dir := DirName(d)
			d.URL = fmt.Sprintf("%s/%s/releases/download/v%s/%s.tar.gz",
				strings.TrimRight(baseURL, "/"), dir, d.Version, dir)
		}
		descs = append(descs, d)
	}
	return New(descs...)
}

// New builds a registry from descs, preserving their order. Ids must be
// positive and unique; PAW descriptors are normalized to scalar-relativistic.
func New(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		descs: make([]Descriptor, 0, len(descs)),
		byID:  make(map[int]int, len(descs)),
	}
	dirs := make(map[string]int, len(descs))
	for _, d := range descs {
		if d.Category == PAW {
			d.Relativity = ScalarRelativistic
		}
		if d.Name == "" {
			d.Name = defaultName(d)
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate repository id %d", d.ID)
		}
		dir := DirName(d)
		if other, dup := dirs[dir]; dup {
			return nil, fmt.Errorf("repositories %d and %d share directory name %q", other, d.ID, dir)
		}
		dirs[dir] = d.ID
		r.byID[d.ID] = len(r.descs)
		r.descs = append(r.descs, d)
	}
	return r, nil
}

// All returns every descriptor in catalog order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int { return len(r.descs) }

// Lookup returns the descriptor with the given id.
func (r *Registry) Lookup(id int) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs[i], true
}

// ByIDs resolves ids in the order given; duplicates yield duplicate entries.
// Any unknown id fails the whole call with an *UnknownIDError.
func (r *Registry) ByIDs(ids ...int) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		d, ok := r.Lookup(id)
		if !ok {
			return nil, &UnknownIDError{ID: id}
		}
		out = append(out, d)
	}
	return out, nil
}

// FromInstalledDirectory reconstructs the descriptor whose installation
// directory has the same base name as path.
func (r *Registry) FromInstalledDirectory(path string) (Descriptor, error) {
	name := filepath.Base(path)
	key, err := ParseDirName(name)
	if err != nil {
		return Descriptor{}, err
	}
	for _, d := range r.descs {
		if d.Key() == key {
			return d, nil
		}
	}
	return Descriptor{}, &UnrecognizedDirectoryError{Name: name, Reason: "no registered repository matches"}
}

// Selector filters descriptors. Zero-valued fields match everything.
type Selector struct {
	Category   Category
	XC         string
	Relativity Relativity
	Format     Format
	// Latest keeps only the highest version of each
	// (category, xc, relativity, format) combination.
	Latest bool
}

func (s Selector) matches(d Descriptor) bool {
	if s.Category != "" && d.Category != s.Category {
		return false
	}
	if s.XC != "" && !strings.EqualFold(d.XC, s.XC) {
		return false
	}
	if s.Relativity != "" && d.Relativity != s.Relativity {
		return false
	}
	if s.Format != "" && d.Format != s.Format {
		return false
	}
	return true
}

// Filter returns the descriptors matching sel, in catalog order.
func (r *Registry) Filter(sel Selector) []Descriptor {
	var matched []Descriptor
	for _, d := range r.descs {
		if sel.matches(d) {
			matched = append(matched, d)
		}
	}
	if !sel.Latest {
		return matched
	}

	// Versions were validated in New, so SemVer cannot fail here.
	best := make(map[Key]Descriptor)
	for _, d := range matched {
		k := d.Key()
		k.Version = ""
		cur, ok := best[k]
		if !ok {
			best[k] = d
			continue
		}
		dv, _ := d.SemVer()
		cv, _ := cur.SemVer()
		if dv.GreaterThan(cv) {
			best[k] = d
		}
	}

	var latest []Descriptor
	for _, d := range matched {
		k := d.Key()
		k.Version = ""
		if best[k].ID == d.ID {
			latest = append(latest, d)
		}
	}
	return latest
}

// defaultName is the PseudoDojo table name; formats of one table share it.
func defaultName(d Descriptor) string {
	switch d.Category {
	case NC:
		return fmt.Sprintf("%s-%s-%s-%s%s", ncPrefix, d.XC, d.Relativity, ncVersionPrefix, d.Version)
	case PAW:
		return fmt.Sprintf("%s-%s-%s-%s", pawPrefix, d.XC, pawTag, d.Version)
	default:
		return fmt.Sprintf("repository-%d", d.ID)
	}
}
