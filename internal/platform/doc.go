// Package platform provides cross-platform filesystem operations used when
// installing repositories: permission handling and atomic directory
// replacement. On Windows chmod is a no-op.
package platform
