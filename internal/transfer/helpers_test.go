package transfer

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/sftpfs"
	"github.com/rescale/twinpane/internal/storage"
)

// countingFS counts every I/O call made through the port.
type countingFS struct {
	storage.Filesystem
	calls atomic.Int64
}

func (c *countingFS) Stat(ctx context.Context, p string) (models.Entry, error) {
	c.calls.Add(1)
	return c.Filesystem.Stat(ctx, p)
}

func (c *countingFS) List(ctx context.Context, p string) ([]models.Entry, error) {
	c.calls.Add(1)
	return c.Filesystem.List(ctx, p)
}

func (c *countingFS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	c.calls.Add(1)
	return c.Filesystem.Open(ctx, p)
}

func (c *countingFS) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	c.calls.Add(1)
	return c.Filesystem.Create(ctx, p)
}

func (c *countingFS) Mkdir(ctx context.Context, p string) error {
	c.calls.Add(1)
	return c.Filesystem.Mkdir(ctx, p)
}

func (c *countingFS) Rmdir(ctx context.Context, p string) error {
	c.calls.Add(1)
	return c.Filesystem.Rmdir(ctx, p)
}

func (c *countingFS) Remove(ctx context.Context, p string) error {
	c.calls.Add(1)
	return c.Filesystem.Remove(ctx, p)
}

func (c *countingFS) Rename(ctx context.Context, a, b string) error {
	c.calls.Add(1)
	return c.Filesystem.Rename(ctx, a, b)
}

// hookFS runs afterList once a listing has been produced, and blocks Stat
// until gate is closed when gate is set.
type hookFS struct {
	storage.Filesystem
	afterList func(p string)
	gate      chan struct{}
}

func (h *hookFS) List(ctx context.Context, p string) ([]models.Entry, error) {
	entries, err := h.Filesystem.List(ctx, p)
	if h.afterList != nil {
		h.afterList(p)
	}
	return entries, err
}

func (h *hookFS) Stat(ctx context.Context, p string) (models.Entry, error) {
	if h.gate != nil {
		<-h.gate
	}
	return h.Filesystem.Stat(ctx, p)
}

// writeTree creates files (name -> content) under root; names use "/".
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// readTree returns relative slash path -> content for every file under root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func putRemote(t *testing.T, r *sftpfs.Client, files map[string]string) {
	t.Helper()
	ctx := context.Background()
	for name, content := range files {
		mkdirRemote(t, r, path.Dir(name))
		if _, err := r.PutFile(ctx, strings.NewReader(content), int64(len(content)), name, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func mkdirRemote(t *testing.T, r *sftpfs.Client, dir string) {
	t.Helper()
	if dir == "/" {
		return
	}
	if _, err := r.Stat(context.Background(), dir); err == nil {
		return
	}
	mkdirRemote(t, r, path.Dir(dir))
	if err := r.Mkdir(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
}

func readRemote(t *testing.T, r *sftpfs.Client, p string) string {
	t.Helper()
	var sb strings.Builder
	if _, err := r.GetFile(context.Background(), p, &sb, nil); err != nil {
		t.Fatalf("GetFile(%s) error = %v", p, err)
	}
	return sb.String()
}

func sameTree(t *testing.T, got, want map[string]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

// unreadableFS fails every read of the files named in bad with EIO.
type unreadableFS struct {
	storage.Filesystem
	bad map[string]bool
}

func (u unreadableFS) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := u.Filesystem.Open(ctx, p)
	if err != nil || !u.bad[filepath.Base(p)] {
		return rc, err
	}
	return eioReader{ReadCloser: rc, path: p}, nil
}

type eioReader struct {
	io.ReadCloser
	path string
}

func (r eioReader) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: r.path, Err: syscall.EIO}
}
