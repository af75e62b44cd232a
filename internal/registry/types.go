package registry

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/opencontainers/go-digest"
)

// Category is the pseudopotential formalism of a repository.
type Category string

const (
	NC  Category = "nc"  // norm-conserving
	PAW Category = "paw" // projector-augmented-wave
)

// Relativity is the relativistic treatment of a norm-conserving repository.
type Relativity string

const (
	ScalarRelativistic Relativity = "SR"
	FullyRelativistic  Relativity = "FR"
)

// Format is the on-disk pseudopotential file format.
type Format string

const (
	FormatPSP8   Format = "psp8"
	FormatUPF2   Format = "upf2"
	FormatPSML   Format = "psml"
	FormatPAWXML Format = "xml"
)

// Tier is a named accuracy level selecting a subset of per-element files.
type Tier string

const (
	TierStandard  Tier = "standard"
	TierStringent Tier = "stringent"
)

// DefaultTier is used when no tier is requested.
const DefaultTier = TierStandard

// Descriptor describes one publishable repository. Descriptors are values:
// copies handed out by a Registry cannot affect the catalog.
type Descriptor struct {
	ID         int
	Name       string
	Category   Category
	XC         string // exchange-correlation functional, e.g. "PBE"
	Relativity Relativity
	Format     Format
	Version    string
	URL        string
	// ArchiveDigest is the expected digest of the downloaded archive.
	// Empty means the archive is not checked before unpacking.
	ArchiveDigest digest.Digest
}

// IsNC reports whether d is a norm-conserving repository.
func (d Descriptor) IsNC() bool { return d.Category == NC }

// IsPAW reports whether d is a PAW repository.
func (d Descriptor) IsPAW() bool { return d.Category == PAW }

// Tiers returns the accuracy tiers the repository provides, in display order.
func (d Descriptor) Tiers() []Tier {
	switch d.Category {
	case NC:
		return []Tier{TierStandard, TierStringent}
	case PAW:
		return []Tier{TierStandard}
	default:
		panic(fmt.Sprintf("registry: unhandled category %q", d.Category))
	}
}

// SupportsTier reports whether t is one of d's tiers.
func (d Descriptor) SupportsTier(t Tier) bool {
	for _, have := range d.Tiers() {
		if have == t {
			return true
		}
	}
	return false
}

// ResolveTier maps a requested tier to one d provides. The empty tier selects
// DefaultTier; an unknown name is an error, never a substitution.
func (d Descriptor) ResolveTier(t Tier) (Tier, error) {
	if t == "" {
		t = DefaultTier
	}
	if !d.SupportsTier(t) {
		return "", &UnsupportedTierError{ID: d.ID, Name: d.Name, Tier: t, Available: d.Tiers()}
	}
	return t, nil
}

// SemVer parses d.Version leniently ("0.4" is 0.4.0).
func (d Descriptor) SemVer() (*semver.Version, error) {
	return semver.NewVersion(d.Version)
}

// String returns a short label used in logs and reports.
func (d Descriptor) String() string {
	return fmt.Sprintf("#%d %s", d.ID, d.Name)
}

// validate checks the category/relativity/format coherence and that every
// field used in the directory name is encodable.
func (d Descriptor) validate() error {
	if d.ID <= 0 {
		return fmt.Errorf("repository id %d must be positive", d.ID)
	}
	if d.XC == "" || strings.ContainsAny(d.XC, "-/\\ ") {
		return fmt.Errorf("repository %d: invalid functional %q", d.ID, d.XC)
	}
	if d.Version == "" || strings.ContainsAny(d.Version, "-/\\ ") {
		return fmt.Errorf("repository %d: invalid version %q", d.ID, d.Version)
	}
	if _, err := d.SemVer(); err != nil {
		return fmt.Errorf("repository %d: parsing version %q: %w", d.ID, d.Version, err)
	}
	switch d.Category {
	case NC:
		if d.Relativity != ScalarRelativistic && d.Relativity != FullyRelativistic {
			return fmt.Errorf("repository %d: invalid relativity %q", d.ID, d.Relativity)
		}
		switch d.Format {
		case FormatPSP8, FormatUPF2, FormatPSML:
		default:
			return fmt.Errorf("repository %d: format %q is not a norm-conserving format", d.ID, d.Format)
		}
	case PAW:
		if d.Relativity != "" && d.Relativity != ScalarRelativistic {
			return fmt.Errorf("repository %d: PAW repositories are scalar-relativistic only", d.ID)
		}
		if d.Format != FormatPAWXML {
			return fmt.Errorf("repository %d: PAW format must be %q, got %q", d.ID, FormatPAWXML, d.Format)
		}
	default:
		return fmt.Errorf("repository %d: unknown category %q", d.ID, d.Category)
	}
	if d.URL == "" {
		return fmt.Errorf("repository %d: missing archive URL", d.ID)
	}
	if d.ArchiveDigest != "" {
		if err := d.ArchiveDigest.Validate(); err != nil {
			return fmt.Errorf("repository %d: archive digest: %w", d.ID, err)
		}
	}
	return nil
}
