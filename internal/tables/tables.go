// Package tables gives read-only access to the pseudopotential tables of
// installed repositories.
package tables

import (
	"fmt"
	"iter"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opencontainers/go-digest"

	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/registry"
)

// Hint names used by the PseudoDojo tables, in increasing cutoff order.
var HintNames = []string{"low", "normal", "high"}

// Entry is the pseudopotential selected for one element.
type Entry struct {
	Element string
	// File is the slash-separated path inside the repository directory.
	File   string
	Digest digest.Digest
	Hints  map[string]float64
	dir    string
}

// Path returns the absolute path of the pseudopotential file.
func (e Entry) Path() string {
	return filepath.Join(e.dir, filepath.FromSlash(e.File))
}

// Hint returns the named cutoff hint in Hartree.
func (e Entry) Hint(name string) (float64, bool) {
	h, ok := e.Hints[name]
	return h, ok
}

// Table is one tier of an installed repository.
type Table struct {
	desc     registry.Descriptor
	tier     registry.Tier
	dir      string
	entries  map[string]Entry
	elements []string
}

// Open reads the table for tier from the installed repository d under root.
// An empty tier selects the default one. Open fails with
// *registry.UnsupportedTierError when d does not offer tier and with
// *registry.NotInstalledError when d is not installed. It never installs or
// validates anything.
func Open(d registry.Descriptor, root string, tier registry.Tier) (*Table, error) {
	tier, err := d.ResolveTier(tier)
	if err != nil {
		return nil, err
	}
	if err := registry.RequireInstalled(d, root); err != nil {
		return nil, err
	}

	dir := registry.DirectoryFor(d, root)
	mt, err := manifest.ReadTable(filepath.Join(dir, filepath.FromSlash(registry.TableFile(d, tier))))
	if err != nil {
		return nil, fmt.Errorf("opening %s table of %s: %w", tier, d, err)
	}

	t := &Table{
		desc:     d,
		tier:     tier,
		dir:      dir,
		entries:  make(map[string]Entry, len(mt.Pseudos)),
		elements: mt.Elements(),
	}
	for sym, ref := range mt.Pseudos {
		t.entries[sym] = Entry{Element: sym, File: ref.File, Digest: ref.Digest, Hints: ref.Hints, dir: dir}
	}
	return t, nil
}

// Descriptor returns the repository the table belongs to.
func (t *Table) Descriptor() registry.Descriptor { return t.desc }

// Tier returns the resolved tier.
func (t *Table) Tier() registry.Tier { return t.tier }

// Dir returns the repository directory.
func (t *Table) Dir() string { return t.dir }

// Len returns the number of elements.
func (t *Table) Len() int { return len(t.elements) }

// Elements returns the element symbols in lexical order.
func (t *Table) Elements() []string {
	return append([]string(nil), t.elements...)
}

// Lookup returns the entry for an element symbol.
func (t *Table) Lookup(symbol string) (Entry, bool) {
	e, ok := t.entries[symbol]
	return e, ok
}

// All iterates over the entries in element order.
func (t *Table) All() iter.Seq2[string, Entry] {
	return func(yield func(string, Entry) bool) {
		for _, sym := range t.elements {
			if !yield(sym, t.entries[sym]) {
				return
			}
		}
	}
}

// String renders the table for humans.
func (t *Table) String() string {
	w := table.NewWriter()
	w.SetTitle(fmt.Sprintf("%s (%s)", t.desc, t.tier))
	header := table.Row{"Element", "File"}
	for _, h := range HintNames {
		header = append(header, h)
	}
	w.AppendHeader(header)
	for sym, e := range t.All() {
		row := table.Row{sym, e.File}
		for _, h := range HintNames {
			if v, ok := e.Hint(h); ok {
				row = append(row, v)
			} else {
				row = append(row, "")
			}
		}
		w.AppendRow(row)
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	w.SetStyle(style)
	return w.Render()
}
