// Package services provides frontend-agnostic file operations on either pane.
// Both the one-shot CLI commands and the interactive shell go through this
// layer, so a delete or rename behaves the same wherever it is issued.
package services

import (
	"errors"
	"fmt"
)

// Errors returned by FileService before any destructive I/O.
var (
	// ErrRootPath refuses operations that would remove or rename a filesystem root.
	ErrRootPath = errors.New("refusing to operate on a root directory")

	// ErrExists is returned when a rename or mkdir target is already taken.
	ErrExists = errors.New("target already exists")

	// ErrDirectory is returned when a directory is deleted without recursion
	// and is not empty.
	ErrDirectory = errors.New("is a directory (use recursive delete)")
)

// DeleteResult counts what a delete removed before it stopped.
type DeleteResult struct {
	// Path is the top-level path that was asked for.
	Path string

	// Files and Dirs removed, including Path itself.
	Files int
	Dirs  int
}

// String formats the result for status lines.
func (r DeleteResult) String() string {
	return fmt.Sprintf("%s: %d files, %d directories removed", r.Path, r.Files, r.Dirs)
}

// BatchResult summarizes DeleteItems.
type BatchResult struct {
	Deleted  int
	Failed   int
	Failures map[string]error
}
