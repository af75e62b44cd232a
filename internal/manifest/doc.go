// Package manifest reads and writes the metadata files that live inside an
// installed repository: the per-tier pseudopotential tables shipped in the
// archive, and the install record the installer writes next to them. Both
// are JSON documents checked against schemas embedded in the binary.
package manifest
