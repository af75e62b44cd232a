// Package cli defines the Cobra command tree for the abips CLI. Each file
// in this package registers one top-level command (avail, list, get, etc.)
// with the root command. Command implementations delegate to internal
// packages and only handle flag parsing, confirmation, and output.
package cli
