// Package pathutil resolves user-supplied local paths (flags, shell
// arguments, config values) into absolute paths.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// "~user" forms are left untouched.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// ResolveAbsolutePath converts a local path to an absolute path.
// Symlinks are resolved in the EXISTING portion of the path and any
// non-existent components are appended, so a destination that does not
// exist yet still resolves under its real parent.
//
// An empty path resolves to the working directory.
func ResolveAbsolutePath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	path, err := ExpandHome(path)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved, nil
	}

	current := absPath
	var remainder []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			// remainder was collected bottom-up
			for i := len(remainder) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, remainder[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		remainder = append(remainder, filepath.Base(current))
		current = parent
	}
}

// ResolveRelativeTo resolves path against base when it is relative.
// Used by the shell, whose local working directory is not the process cwd.
func ResolveRelativeTo(base, path string) (string, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = base
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return ResolveAbsolutePath(path)
}
