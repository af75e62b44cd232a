// Package installer fetches repository archives and unpacks them under the
// repository root. An install is staged in a hidden temporary directory next
// to its destination and renamed into place only after the unpacked bundle
// has been checked, so a failed or interrupted install leaves nothing that
// looks installed. A lock file per repository serializes concurrent
// installers of the same repository across processes.
package installer
