package manifest

import (
	"sort"
	"time"

	"github.com/opencontainers/go-digest"
)

// Table is one accuracy tier of a repository: element symbol to pseudo file.
type Table struct {
	Tier    string               `json:"tier,omitempty"`
	Pseudos map[string]PseudoRef `json:"pseudos"`
}

// PseudoRef locates a pseudopotential file inside the bundle.
type PseudoRef struct {
	File string `json:"file"` // slash-separated, relative to the bundle root
	// Digest is the checksum declared by the table author, if any.
	Digest digest.Digest      `json:"digest,omitempty"`
	Hints  map[string]float64 `json:"hints,omitempty"` // cutoff hints (Ha), e.g. "low", "normal", "high"
}

// Elements returns the element symbols in the table, sorted.
func (t *Table) Elements() []string {
	out := make([]string, 0, len(t.Pseudos))
	for sym := range t.Pseudos {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// InstallRecord is written by the installer at the top of every bundle and
// holds the digest of every installed file.
type InstallRecord struct {
	ID            int                      `json:"id"`
	Name          string                   `json:"name"`
	DirName       string                   `json:"dir_name"`
	Version       string                   `json:"version"`
	URL           string                   `json:"url,omitempty"`
	ArchiveDigest digest.Digest            `json:"archive_digest,omitempty"`
	InstalledAt   time.Time                `json:"installed_at"`
	Files         map[string]digest.Digest `json:"files"`
}

// SortedFiles returns the recorded file paths in lexical order.
func (r *InstallRecord) SortedFiles() []string {
	out := make([]string, 0, len(r.Files))
	for f := range r.Files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
