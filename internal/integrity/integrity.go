package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/abinit/psrepos/internal/batch"
	"github.com/abinit/psrepos/internal/manifest"
	"github.com/abinit/psrepos/internal/registry"
)

// Violation is one file whose content does not match its expected digest.
// Expected is empty when no digest could be recovered for the file;
// Actual is empty when the file is absent, is not a regular file, or
// cannot be read.
type Violation struct {
	File     string        `json:"file"`
	Expected digest.Digest `json:"expected,omitempty"`
	Actual   digest.Digest `json:"actual,omitempty"`
}

// Absent reports whether no content could be read for the file.
func (v Violation) Absent() bool { return v.Actual == "" }

func (v Violation) String() string {
	switch {
	case v.Absent():
		return v.File + ": missing"
	case v.Expected == "":
		return fmt.Sprintf("%s: unreadable (%s)", v.File, v.Actual)
	default:
		return fmt.Sprintf("%s: expected %s, got %s", v.File, v.Expected, v.Actual)
	}
}

// Report is the outcome of validating one repository.
type Report struct {
	Descriptor registry.Descriptor `json:"-"`
	Dir        string              `json:"dir"`
	Checked    int                 `json:"checked"`
	Violations []Violation         `json:"violations"`
}

// MarshalJSON adds the repository id and name.
func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	return json.Marshal(struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		report
	}{r.Descriptor.ID, r.Descriptor.Name, report(r)})
}

// OK reports whether no violation was found.
func (r Report) OK() bool { return len(r.Violations) == 0 }

func (r Report) String() string {
	if r.OK() {
		return fmt.Sprintf("%s: %d files OK", r.Descriptor, r.Checked)
	}
	lines := []string{fmt.Sprintf("%s: %d of %d files corrupted", r.Descriptor, len(r.Violations), r.Checked)}
	for _, v := range r.Violations {
		lines = append(lines, "  "+v.String())
	}
	return strings.Join(lines, "\n")
}

// Validate checks every file of the installed repository d under root and
// returns all violations found, never stopping at the first one. It fails
// with *registry.NotInstalledError only when the repository directory does
// not exist; a damaged or missing install record is a violation.
func Validate(ctx context.Context, d registry.Descriptor, root string) (Report, error) {
	dir := registry.DirectoryFor(d, root)
	rep := Report{Descriptor: d, Dir: dir}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return rep, &registry.NotInstalledError{ID: d.ID, Name: d.Name, Dir: dir}
	}
	if err != nil {
		return rep, fmt.Errorf("checking %s: %w", dir, err)
	}

	c := checker{ctx: ctx, dir: dir, checked: map[string]bool{}}
	rec, err := manifest.ReadRecord(filepath.Join(dir, registry.InstallRecordFile))
	if err != nil {
		c.recordViolation(registry.InstallRecordFile, "")
	} else {
		for _, f := range rec.SortedFiles() {
			if err := c.check(f, rec.Files[f]); err != nil {
				return rep, err
			}
		}
	}

	for _, tier := range d.Tiers() {
		if err := c.checkTable(registry.TableFile(d, tier)); err != nil {
			return rep, err
		}
	}

	rep.Checked = len(c.checked)
	rep.Violations = c.violations
	return rep, nil
}

type checker struct {
	ctx        context.Context
	dir        string
	checked    map[string]bool
	violations []Violation
}

// check compares one bundle file against want. A file is checked at most
// once.
func (c *checker) check(file string, want digest.Digest) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if c.checked[file] {
		return nil
	}
	c.checked[file] = true

	if !manifest.IsLocalPath(file) {
		c.violations = append(c.violations, Violation{File: file, Expected: want})
		return nil
	}
	if want.Validate() != nil {
		c.recordViolation(file, want)
		return nil
	}
	p := filepath.Join(c.dir, filepath.FromSlash(file))
	if info, err := os.Lstat(p); err != nil || !info.Mode().IsRegular() {
		c.violations = append(c.violations, Violation{File: file, Expected: want})
		return nil
	}
	got, err := manifest.DigestFile(p, want.Algorithm())
	switch {
	case err != nil:
		c.violations = append(c.violations, Violation{File: file, Expected: want})
	case got != want:
		c.violations = append(c.violations, Violation{File: file, Expected: want, Actual: got})
	}
	return nil
}

// recordViolation flags file as present but unusable, or absent.
func (c *checker) recordViolation(file string, want digest.Digest) {
	c.checked[file] = true
	v := Violation{File: file, Expected: want}
	p := filepath.Join(c.dir, filepath.FromSlash(file))
	if info, err := os.Lstat(p); err == nil && info.Mode().IsRegular() {
		if got, err := manifest.DigestFile(p, ""); err == nil {
			v.Actual = got
		}
	}
	c.violations = append(c.violations, v)
}

// checkTable checks the digests declared by a tier table for the files the
// install record did not already cover.
func (c *checker) checkTable(name string) error {
	t, err := manifest.ReadTable(filepath.Join(c.dir, filepath.FromSlash(name)))
	if err != nil {
		if !c.checked[name] {
			c.recordViolation(name, "")
		}
		return nil
	}
	for _, sym := range t.Elements() {
		ref := t.Pseudos[sym]
		if ref.Digest == "" || c.checked[ref.File] {
			continue
		}
		if err := c.check(ref.File, ref.Digest); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll validates every descriptor with at most jobs concurrent
// validations. Reports are returned in input order for every repository
// that could be validated; the error joins the failures of the others.
func ValidateAll(ctx context.Context, descs []registry.Descriptor, root string, jobs int) ([]Report, error) {
	outs := batch.Map(ctx, descs, jobs, func(ctx context.Context, d registry.Descriptor) (Report, error) {
		return Validate(ctx, d, root)
	})
	var reports []Report
	for _, o := range outs {
		if o.Err == nil {
			reports = append(reports, o.Value)
		}
	}
	return reports, batch.Collect(outs).Err()
}
