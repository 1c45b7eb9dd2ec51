package sftpfs

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
)

// Stat follows symlinks.
func (c *Client) Stat(ctx context.Context, p string) (models.Entry, error) {
	s, err := c.client()
	if err != nil {
		return models.Entry{}, err
	}
	info, err := s.Stat(p)
	if err != nil {
		return models.Entry{}, c.mapErr("stat", p, err)
	}
	entry := models.EntryFromFileInfo(info)
	entry.Name = path.Base(p)
	return entry, nil
}

// List returns the children of p. Symlinks are resolved so a link to a
// directory lists as a directory; dangling links are skipped.
func (c *Client) List(ctx context.Context, p string) ([]models.Entry, error) {
	s, err := c.client()
	if err != nil {
		return nil, err
	}
	infos, err := s.ReadDir(p)
	if err != nil {
		return nil, c.mapErr("list", p, err)
	}

	result := make([]models.Entry, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "." || name == ".." {
			continue
		}
		link := info.Mode()&os.ModeSymlink != 0
		if link {
			target, err := s.Stat(path.Join(p, name))
			if err != nil {
				continue
			}
			info = target
		}
		entry := models.EntryFromFileInfo(info)
		entry.Name = name
		entry.Link = link
		result = append(result, entry)
	}
	return result, nil
}

// Open opens a remote file for reading.
func (c *Client) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	s, err := c.client()
	if err != nil {
		return nil, err
	}
	info, err := s.Stat(p)
	if err != nil {
		return nil, c.mapErr("open", p, err)
	}
	if info.IsDir() {
		return nil, storage.NewAccessError("open", p, storage.ErrIsDirectory)
	}
	f, err := s.Open(p)
	if err != nil {
		return nil, c.mapErr("open", p, err)
	}
	return f, nil
}

// Create creates or truncates a remote file for writing.
func (c *Client) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	s, err := c.client()
	if err != nil {
		return nil, err
	}
	f, err := s.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, c.mapErr("create", p, err)
	}
	return f, nil
}

// Mkdir creates a single remote directory.
func (c *Client) Mkdir(ctx context.Context, p string) error {
	s, err := c.client()
	if err != nil {
		return err
	}
	return c.mapErr("mkdir", p, s.Mkdir(p))
}

// Rmdir removes an empty remote directory.
func (c *Client) Rmdir(ctx context.Context, p string) error {
	s, err := c.client()
	if err != nil {
		return err
	}
	info, err := s.Lstat(p)
	if err != nil {
		return c.mapErr("rmdir", p, err)
	}
	if !info.IsDir() {
		return storage.NewAccessError("rmdir", p, storage.ErrNotDirectory)
	}
	return c.mapErr("rmdir", p, s.RemoveDirectory(p))
}

// Remove removes a remote file or symlink, never a directory.
func (c *Client) Remove(ctx context.Context, p string) error {
	s, err := c.client()
	if err != nil {
		return err
	}
	info, err := s.Lstat(p)
	if err != nil {
		return c.mapErr("remove", p, err)
	}
	if info.IsDir() {
		return storage.NewAccessError("remove", p, storage.ErrIsDirectory)
	}
	return c.mapErr("remove", p, s.Remove(p))
}

// Rename moves oldPath to newPath. Most servers refuse to overwrite.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	s, err := c.client()
	if err != nil {
		return err
	}
	return c.mapErr("rename", oldPath, s.Rename(oldPath, newPath))
}

// RealPath implements storage.Resolver through the server's realpath request.
func (c *Client) RealPath(ctx context.Context, p string) (string, error) {
	s, err := c.client()
	if err != nil {
		return "", err
	}
	resolved, err := s.RealPath(p)
	if err != nil {
		return "", c.mapErr("resolve", p, err)
	}
	return resolved, nil
}

// GetFile streams remotePath into sink and returns the bytes written.
// Write failures of sink come back as access errors.
func (c *Client) GetFile(ctx context.Context, remotePath string, sink io.Writer, onChunk storage.ChunkFunc) (int64, error) {
	s, err := c.client()
	if err != nil {
		return 0, err
	}
	info, err := s.Stat(remotePath)
	if err != nil {
		return 0, c.mapErr("get", remotePath, err)
	}
	if info.IsDir() {
		return 0, storage.NewAccessError("get", remotePath, storage.ErrIsDirectory)
	}
	f, err := s.Open(remotePath)
	if err != nil {
		return 0, c.mapErr("get", remotePath, err)
	}
	defer f.Close()

	n, err := storage.CopyChunked(storage.LocalWriter(sink), f, info.Size(), c.opts.ChunkSize, onChunk)
	if err != nil {
		return n, c.mapErr("get", remotePath, err)
	}
	return n, nil
}

// PutFile streams size bytes from src into remotePath. Read failures of src
// come back as access errors and never end the session.
func (c *Client) PutFile(ctx context.Context, src io.Reader, size int64, remotePath string, onChunk storage.ChunkFunc) (int64, error) {
	w, err := c.Create(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	n, err := storage.CopyChunked(w, storage.LocalReader(src), size, c.opts.ChunkSize, onChunk)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, c.mapErr("put", remotePath, err)
	}
	return n, nil
}

// Paths spells remote paths: always slash-separated, relative paths are
// relative to the login directory.
type Paths struct {
	Root string
}

func (Paths) Join(elem ...string) string { return path.Join(elem...) }
func (Paths) Dir(p string) string        { return path.Dir(p) }
func (Paths) Base(p string) string       { return path.Base(p) }
func (Paths) IsAbs(p string) bool        { return path.IsAbs(p) }

// Normalize cleans p. Relative paths below the login directory are spelled
// "./x" so nesting checks against "." work with a plain prefix test.
func (Paths) Normalize(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return clean
	}
	return "./" + clean
}

// IsRoot reports whether p has no navigable parent: "/", "." or the
// configured root.
func (r Paths) IsRoot(p string) bool {
	clean := path.Clean(p)
	return clean == "/" || clean == "." || (r.Root != "" && clean == path.Clean(r.Root))
}
