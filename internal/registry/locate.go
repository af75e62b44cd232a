package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// InstallRecordFile is written by the installer at the top of every bundle.
// Its presence is part of the installed marker set.
const InstallRecordFile = ".psrepo.json"

const (
	ncPrefix        = "ONCVPSP"
	ncVersionPrefix = "PDv"
	pawPrefix       = "JTH"
	pawTag          = "atomicdata"
	pawTableFile    = "pseudos.json"
)

// Key is the identity encoded in an installation directory name.
type Key struct {
	Category   Category
	XC         string
	Relativity Relativity
	Format     Format
	Version    string
}

// Key returns the directory identity of d.
func (d Descriptor) Key() Key {
	return Key{
		Category:   d.Category,
		XC:         d.XC,
		Relativity: d.Relativity,
		Format:     d.Format,
		Version:    d.Version,
	}
}

// DirName returns the installation directory name of d:
//
//	NC:  ONCVPSP-<xc>-<SR|FR>-PDv<version>-<format>
//	PAW: JTH-<xc>-atomicdata-<version>
func DirName(d Descriptor) string {
	switch d.Category {
	case NC:
		return fmt.Sprintf("%s-%s-%s-%s%s-%s", ncPrefix, d.XC, d.Relativity, ncVersionPrefix, d.Version, d.Format)
	case PAW:
		return fmt.Sprintf("%s-%s-%s-%s", pawPrefix, d.XC, pawTag, d.Version)
	default:
		return fmt.Sprintf("unknown-%d", d.ID)
	}
}

// DirectoryFor returns the installation directory of d under root.
func DirectoryFor(d Descriptor, root string) string {
	return filepath.Join(root, DirName(d))
}

// ParseDirName is the inverse of DirName.
func ParseDirName(name string) (Key, error) {
	parts := strings.Split(name, "-")
	switch {
	case len(parts) == 5 && parts[0] == ncPrefix:
		rel := Relativity(parts[2])
		if rel != ScalarRelativistic && rel != FullyRelativistic {
			return Key{}, &UnrecognizedDirectoryError{Name: name, Reason: "bad relativity " + parts[2]}
		}
		if !strings.HasPrefix(parts[3], ncVersionPrefix) || len(parts[3]) == len(ncVersionPrefix) {
			return Key{}, &UnrecognizedDirectoryError{Name: name, Reason: "missing PDv version"}
		}
		f := Format(parts[4])
		if f != FormatPSP8 && f != FormatUPF2 && f != FormatPSML {
			return Key{}, &UnrecognizedDirectoryError{Name: name, Reason: "bad format " + parts[4]}
		}
		return Key{
			Category:   NC,
			XC:         parts[1],
			Relativity: rel,
			Format:     f,
			Version:    strings.TrimPrefix(parts[3], ncVersionPrefix),
		}, nil
	case len(parts) == 4 && parts[0] == pawPrefix && parts[2] == pawTag:
		if parts[1] == "" || parts[3] == "" {
			return Key{}, &UnrecognizedDirectoryError{Name: name}
		}
		return Key{
			Category:   PAW,
			XC:         parts[1],
			Relativity: ScalarRelativistic,
			Format:     FormatPAWXML,
			Version:    parts[3],
		}, nil
	default:
		return Key{}, &UnrecognizedDirectoryError{Name: name}
	}
}

// TableFile returns the bundle-relative path of the table for tier, which
// must already be resolved with ResolveTier.
func TableFile(d Descriptor, tier Tier) string {
	switch d.Category {
	case NC:
		return string(tier) + ".json"
	case PAW:
		return pawTableFile
	default:
		panic(fmt.Sprintf("registry: unhandled category %q", d.Category))
	}
}

// MarkerFiles returns the bundle-relative files whose presence marks d as
// installed: the install record plus one table per tier.
func MarkerFiles(d Descriptor) []string {
	markers := []string{InstallRecordFile}
	seen := map[string]bool{}
	for _, t := range d.Tiers() {
		f := TableFile(d, t)
		if !seen[f] {
			seen[f] = true
			markers = append(markers, f)
		}
	}
	return markers
}

// IsInstalled reports whether d's directory exists under root and holds its
// marker files. No digests are computed.
func IsInstalled(d Descriptor, root string) bool {
	dir := DirectoryFor(d, root)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	for _, m := range MarkerFiles(d) {
		fi, err := os.Stat(filepath.Join(dir, m))
		if err != nil || !fi.Mode().IsRegular() {
			return false
		}
	}
	return true
}

// RequireInstalled returns a *NotInstalledError unless IsInstalled(d, root).
func RequireInstalled(d Descriptor, root string) error {
	if !IsInstalled(d, root) {
		return &NotInstalledError{ID: d.ID, Name: d.Name, Dir: DirectoryFor(d, root)}
	}
	return nil
}

// ListInstalled scans root and returns the installed descriptors sorted by
// id. Entries that do not parse as repository directories are skipped.
func ListInstalled(r *Registry, root string) ([]Descriptor, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading repository root %s: %w", root, err)
	}

	var installed []Descriptor
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		d, err := r.FromInstalledDirectory(e.Name())
		if errors.Is(err, ErrUnrecognizedDirectoryName) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if IsInstalled(d, root) {
			installed = append(installed, d)
		}
	}
	sort.Slice(installed, func(i, j int) bool { return installed[i].ID < installed[j].ID })
	return installed, nil
}

// Entry pairs a descriptor with its installation state for rendering.
type Entry struct {
	Descriptor
	Dir       string
	Installed bool
}

// Status reports the installation state of each descriptor, in order.
func Status(descs []Descriptor, root string) []Entry {
	out := make([]Entry, len(descs))
	for i, d := range descs {
		out[i] = Entry{
			Descriptor: d,
			Dir:        DirectoryFor(d, root),
			Installed:  IsInstalled(d, root),
		}
	}
	return out
}
