// Package integrity verifies installed repositories against the digests
// recorded at install time and declared in their tables.
//
// A mismatch is reported as a Violation inside a Report. Errors are kept
// for the cases where validation could not run at all, such as a
// repository that is not installed.
package integrity
