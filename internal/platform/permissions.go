package platform

import (
	"os"
	"runtime"
)

// Permission constants for installed bundles.
const (
	DirPerm  os.FileMode = 0755
	FilePerm os.FileMode = 0644
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// SanitizeMode keeps the permission bits of an archive entry, drops setuid,
// setgid and sticky bits, and guarantees the owner can read the file.
func SanitizeMode(mode os.FileMode) os.FileMode {
	perm := mode.Perm() | 0400
	if perm&0777 == 0400 {
		return FilePerm
	}
	return perm
}
