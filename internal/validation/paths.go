// Package validation provides input validation utilities for twinpane.
package validation

import (
	"fmt"
	"strings"
)

// ValidateFilename validates a single entry name (not a full path).
// Names come from remote listings and from user input before being joined
// onto a directory, so anything that could change the target directory is refused.
//
// Returns an error if the filename:
//   - Is empty
//   - Contains path separators (/ or \)
//   - Is "." or ".."
//   - Contains null bytes
func ValidateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if strings.ContainsRune(filename, 0) {
		return fmt.Errorf("filename contains null byte: %q", filename)
	}

	if strings.ContainsRune(filename, '/') || strings.ContainsRune(filename, '\\') {
		return fmt.Errorf("filename cannot contain path separators: %s", filename)
	}

	// "foo..bar.txt" is fine; only the literal dot names are refused.
	if filename == "." || filename == ".." {
		return fmt.Errorf("filename cannot be '%s'", filename)
	}

	return nil
}

// IsWithin reports whether target equals base or lies below it, given both
// paths are already normalized and use sep as separator.
//
// Example:
//
//	IsWithin("/a", "/a/b", "/")  // true
//	IsWithin("/a", "/ab", "/")   // false
//	IsWithin("/", "/x", "/")     // true
func IsWithin(base, target, sep string) bool {
	if base == "" || target == "" {
		return false
	}
	if base == target {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, sep) {
		prefix += sep
	}
	return strings.HasPrefix(target, prefix)
}
