// Package localfs is the local side of the dual-pane browser: a
// storage.Filesystem backed by the host operating system.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
)

// Default permissions for created entries; the process umask still applies.
const (
	dirPerm  os.FileMode = 0755
	filePerm os.FileMode = 0644
)

// FS implements storage.Filesystem on the host OS.
type FS struct {
	paths Paths
}

// New returns the local filesystem port.
func New() *FS {
	return &FS{}
}

var (
	_ storage.Filesystem = (*FS)(nil)
	_ storage.Resolver   = (*FS)(nil)
)

// Side implements storage.Filesystem.
func (f *FS) Side() models.Side { return models.SideLocal }

// Paths implements storage.Filesystem.
func (f *FS) Paths() storage.PathRules { return f.paths }

// Stat follows symlinks, so a link to a directory is browsed as a directory.
func (f *FS) Stat(ctx context.Context, path string) (models.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Entry{}, storage.NewAccessError("stat", path, err)
	}
	entry := models.EntryFromFileInfo(info)
	entry.Name = filepath.Base(path)
	return entry, nil
}

// List returns the children of path in the filesystem's native order.
// Entries that cannot be stat'ed (dangling symlinks, races) are skipped.
func (f *FS) List(ctx context.Context, path string) ([]models.Entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, storage.NewAccessError("list", path, err)
	}

	result := make([]models.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := os.Stat(filepath.Join(path, de.Name()))
		if err != nil {
			continue
		}
		entry := models.EntryFromFileInfo(info)
		entry.Name = de.Name()
		entry.Link = de.Type()&os.ModeSymlink != 0
		result = append(result, entry)
	}
	return result, nil
}

// RealPath implements storage.Resolver.
func (f *FS) RealPath(ctx context.Context, path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", storage.NewAccessError("resolve", path, err)
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return "", storage.NewAccessError("resolve", path, err)
	}
	return resolved, nil
}

// Open opens a regular file for reading.
func (f *FS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, storage.NewAccessError("open", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, storage.NewAccessError("open", path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, storage.NewAccessError("open", path, storage.ErrIsDirectory)
	}
	return file, nil
}

// Create creates or truncates path. The parent directory must exist.
func (f *FS) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return nil, storage.NewAccessError("create", path, err)
	}
	return file, nil
}

// Mkdir creates a single directory.
func (f *FS) Mkdir(ctx context.Context, path string) error {
	return storage.NewAccessError("mkdir", path, os.Mkdir(path, dirPerm))
}

// Rmdir removes an empty directory.
func (f *FS) Rmdir(ctx context.Context, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return storage.NewAccessError("rmdir", path, err)
	}
	if !info.IsDir() {
		return storage.NewAccessError("rmdir", path, storage.ErrNotDirectory)
	}
	return storage.NewAccessError("rmdir", path, os.Remove(path))
}

// Remove removes a file or symlink, never a directory.
func (f *FS) Remove(ctx context.Context, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return storage.NewAccessError("remove", path, err)
	}
	if info.IsDir() {
		return storage.NewAccessError("remove", path, storage.ErrIsDirectory)
	}
	return storage.NewAccessError("remove", path, os.Remove(path))
}

// Rename moves oldPath to newPath.
func (f *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	return storage.NewAccessError("rename", oldPath, os.Rename(oldPath, newPath))
}

// Paths spells local paths with the host separator.
type Paths struct{}

func (Paths) Join(elem ...string) string { return filepath.Join(elem...) }
func (Paths) Dir(path string) string     { return filepath.Dir(path) }
func (Paths) Base(path string) string    { return filepath.Base(path) }
func (Paths) IsAbs(path string) bool     { return filepath.IsAbs(path) }

// Normalize makes path absolute and clean without touching the disk.
func (Paths) Normalize(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// IsRoot reports whether path is a filesystem root ("/" or a volume root).
func (Paths) IsRoot(path string) bool {
	clean := filepath.Clean(path)
	return filepath.Dir(clean) == clean
}
