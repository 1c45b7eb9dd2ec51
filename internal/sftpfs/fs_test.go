package sftpfs_test

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"sort"
	"strings"
	"syscall"
	"testing"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/sftpfs"
	"github.com/rescale/twinpane/internal/sftpfs/sftptest"
	"github.com/rescale/twinpane/internal/storage"
)

func put(t *testing.T, r *sftpfs.Client, p, content string) {
	t.Helper()
	if _, err := r.PutFile(context.Background(), strings.NewReader(content), int64(len(content)), p, nil); err != nil {
		t.Fatalf("PutFile(%s) error = %v", p, err)
	}
}

func TestListAndStat(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{})

	if err := r.Mkdir(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Mkdir(ctx, "/a/sub"); err != nil {
		t.Fatal(err)
	}
	put(t, r, "/a/f1.txt", "0123456789")

	entries, err := r.List(ctx, "/a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Name != "f1.txt" || entries[0].IsDir || entries[0].Size != 10 {
		t.Errorf("f1.txt entry = %+v", entries[0])
	}
	if entries[1].Name != "sub" || !entries[1].IsDir {
		t.Errorf("sub entry = %+v", entries[1])
	}

	st, err := r.Stat(ctx, "/a/f1.txt")
	if err != nil {
		t.Fatal(err)
	}
	if st.Name != "f1.txt" || st.Size != 10 {
		t.Errorf("Stat() = %+v", st)
	}
}

func TestMissingPathIsAccessError(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{})

	_, err := r.Stat(ctx, "/nope")
	if !storage.IsAccessError(err) || !storage.IsNotExist(err) {
		t.Errorf("Stat() error = %v, want not-exist AccessError", err)
	}
	if _, err := r.List(ctx, "/nope"); !storage.IsAccessError(err) {
		t.Errorf("List() error = %v, want AccessError", err)
	}
	if storage.IsConnectionError(err) {
		t.Error("missing path classified as connection error")
	}
}

func TestGetPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{ChunkSize: 4096})

	payload := bytes.Repeat([]byte("abc"), 5000) // 15000 bytes, 4 chunks
	var putCalls []int64
	n, err := r.PutFile(ctx, bytes.NewReader(payload), int64(len(payload)), "/blob", func(done, total int64) {
		putCalls = append(putCalls, done)
	})
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("PutFile() = %d, %v", n, err)
	}
	if len(putCalls) != 4 || putCalls[3] != int64(len(payload)) {
		t.Errorf("put progress = %v", putCalls)
	}

	var buf bytes.Buffer
	var lastTotal int64
	n, err = r.GetFile(ctx, "/blob", &buf, func(done, total int64) { lastTotal = total })
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("GetFile() = %d, %v", n, err)
	}
	if !bytes.Equal(buf.Bytes(), payload) {
		t.Error("downloaded bytes differ")
	}
	if lastTotal != int64(len(payload)) {
		t.Errorf("total = %d", lastTotal)
	}

	// Overwrite with shorter content truncates.
	put(t, r, "/blob", "xy")
	buf.Reset()
	if _, err := r.GetFile(ctx, "/blob", &buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "xy" {
		t.Errorf("after overwrite content = %q", buf.String())
	}
}

func TestGetFileDirectory(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{})
	if err := r.Mkdir(ctx, "/d"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetFile(ctx, "/d", &bytes.Buffer{}, nil); !errors.Is(err, storage.ErrIsDirectory) {
		t.Errorf("GetFile(dir) error = %v", err)
	}
}

func TestRemoveRmdirRename(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{})

	if err := r.Mkdir(ctx, "/d"); err != nil {
		t.Fatal(err)
	}
	put(t, r, "/d/f", "x")

	if err := r.Remove(ctx, "/d"); !errors.Is(err, storage.ErrIsDirectory) {
		t.Errorf("Remove(dir) error = %v", err)
	}
	if err := r.Rmdir(ctx, "/d/f"); !errors.Is(err, storage.ErrNotDirectory) {
		t.Errorf("Rmdir(file) error = %v", err)
	}
	if err := r.Rename(ctx, "/d/f", "/d/g"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if _, err := r.Stat(ctx, "/d/f"); !storage.IsNotExist(err) {
		t.Errorf("old name still present: %v", err)
	}
	if err := r.Remove(ctx, "/d/g"); err != nil {
		t.Fatal(err)
	}
	if err := r.Rmdir(ctx, "/d"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Stat(ctx, "/d"); !storage.IsNotExist(err) {
		t.Errorf("directory still present: %v", err)
	}
}

func TestNotConnected(t *testing.T) {
	ctx := context.Background()
	r := sftpfs.New(sftpfs.Options{})

	if r.Connected() {
		t.Fatal("new client should be disconnected")
	}
	_, err := r.List(ctx, ".")
	if !storage.IsConnectionError(err) || !errors.Is(err, storage.ErrNotConnected) {
		t.Errorf("List() error = %v, want not connected", err)
	}
	if _, err := r.GetFile(ctx, "x", &bytes.Buffer{}, nil); !storage.IsConnectionError(err) {
		t.Errorf("GetFile() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() on disconnected client = %v", err)
	}
}

func TestCloseDisconnects(t *testing.T) {
	r := sftptest.NewRemote(t, sftpfs.Options{})
	if !r.Connected() {
		t.Fatal("expected connected")
	}
	r.Close()
	if r.Connected() {
		t.Error("still connected after Close")
	}
	if r.Side() != models.SideRemote {
		t.Error("remote side expected")
	}
}

func TestPaths(t *testing.T) {
	p := sftpfs.Paths{Root: "/srv/data"}

	roots := []string{"/", ".", "/srv/data", "/srv/data/"}
	for _, r := range roots {
		if !p.IsRoot(r) {
			t.Errorf("IsRoot(%q) = false", r)
		}
	}
	for _, r := range []string{"/srv", "docs", "/srv/data/x"} {
		if p.IsRoot(r) {
			t.Errorf("IsRoot(%q) = true", r)
		}
	}

	if got := p.Dir("docs"); got != "." {
		t.Errorf("Dir(docs) = %q, want .", got)
	}

	norm := map[string]string{
		"":        "",
		".":       ".",
		"./a/../": ".",
		"a/b/":    "./a/b",
		"/x//y":   "/x/y",
		"../up":   "../up",
	}
	for in, want := range norm {
		if got := p.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestPutFileLocalReadError(t *testing.T) {
	ctx := context.Background()
	r := sftptest.NewRemote(t, sftpfs.Options{})

	readErr := &fs.PathError{Op: "read", Path: "/home/geoffrey/a.txt", Err: syscall.EIO}
	_, err := r.PutFile(ctx, failingReader{readErr}, 10, "/a.txt", nil)
	if !storage.IsAccessError(err) || storage.IsConnectionError(err) {
		t.Fatalf("PutFile() error = %v (%T), want access error", err, err)
	}
	if !errors.Is(err, syscall.EIO) {
		t.Errorf("error should wrap EIO: %v", err)
	}
	if !r.Connected() {
		t.Fatal("session dropped after a local read failure")
	}
	put(t, r, "/b.txt", "still works")
}
