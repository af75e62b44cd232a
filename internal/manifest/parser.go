package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
)

// ErrInvalid is returned when a document does not satisfy its schema.
var ErrInvalid = errors.New("invalid document")

// InvalidError lists the schema issues of one document.
type InvalidError struct {
	Source string
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s", e.Source, strings.Join(msgs, "; "))
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// DecodeTable validates and decodes a table document. source names the
// document in error messages.
func DecodeTable(data []byte, source string) (*Table, error) {
	if err := validateDoc(TableSchema, data, source); err != nil {
		return nil, err
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding table %s: %w", source, err)
	}
	for sym, ref := range t.Pseudos {
		if !IsLocalPath(ref.File) {
			return nil, &InvalidError{Source: source, Issues: []ValidationIssue{{
				Path:    "/pseudos/" + sym + "/file",
				Message: fmt.Sprintf("%q escapes the bundle", ref.File),
				Keyword: "file",
			}}}
		}
	}
	return &t, nil
}

// ReadTable reads, validates, and decodes a table file.
func ReadTable(p string) (*Table, error) {
	data, err := readFile(p)
	if err != nil {
		return nil, err
	}
	return DecodeTable(data, p)
}

// ReadRecord reads, validates, and decodes an install record.
func ReadRecord(p string) (*InstallRecord, error) {
	data, err := readFile(p)
	if err != nil {
		return nil, err
	}
	if err := validateDoc(RecordSchema, data, p); err != nil {
		return nil, err
	}
	var rec InstallRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding install record %s: %w", p, err)
	}
	return &rec, nil
}

// WriteRecord writes rec as indented JSON.
func WriteRecord(p string, rec *InstallRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling install record: %w", err)
	}
	if err := validateDoc(RecordSchema, data, p); err != nil {
		return err
	}
	if err := os.WriteFile(p, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing install record %s: %w", p, err)
	}
	return nil
}

// IsLocalPath reports whether a slash-separated bundle path stays inside the
// bundle: relative, and without ".." components after cleaning.
func IsLocalPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

func validateDoc(schemaName string, data []byte, source string) error {
	result, err := Validate(schemaName, data)
	if err != nil {
		return fmt.Errorf("validating %s: %w", source, err)
	}
	if !result.Valid {
		return &InvalidError{Source: source, Issues: result.Issues}
	}
	return nil
}

// readFile reads the contents of a file at the given path.
func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}
	return data, nil
}
