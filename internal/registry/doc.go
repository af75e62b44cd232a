// Package registry holds the catalog of known pseudopotential repositories
// and maps each repository descriptor to its installation directory under a
// root. The catalog is embedded in the binary and never mutated; tests build
// their own registries with New.
//
// Installation state is always derived from the filesystem: IsInstalled and
// ListInstalled stat the root on every call and cache nothing.
package registry
