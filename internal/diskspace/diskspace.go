// Package diskspace checks free space on the local filesystem before a
// download writes a file.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"
)

// DefaultMargin leaves 5% headroom over the bytes a file needs.
const DefaultMargin = 1.05

// InsufficientSpaceError reports that the filesystem holding Path cannot fit
// the requested bytes.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s",
		e.Path, formatBytes(e.RequiredBytes), formatBytes(e.AvailableBytes))
}

// Check returns an InsufficientSpaceError when the filesystem that will hold
// targetPath has fewer than requiredBytes*margin bytes free. targetPath need
// not exist; its parent directory is inspected. When free space cannot be
// determined (network mounts, unsupported platforms) Check returns nil and
// the write fails on its own if it must.
func Check(targetPath string, requiredBytes int64, margin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	if margin < 1 {
		margin = 1
	}
	available, ok := available(filepath.Dir(targetPath))
	if !ok {
		return nil
	}
	required := int64(float64(requiredBytes) * margin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// Available returns the free bytes for the filesystem holding path, or 0 if
// unknown.
func Available(path string) int64 {
	n, ok := available(filepath.Dir(path))
	if !ok {
		return 0
	}
	return n
}

// IsInsufficientSpace reports whether err wraps an InsufficientSpaceError.
func IsInsufficientSpace(err error) bool {
	var se *InsufficientSpaceError
	return errors.As(err, &se)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
