package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rescale/twinpane/internal/localfs"
	"github.com/rescale/twinpane/internal/sftpfs"
	"github.com/rescale/twinpane/internal/sftpfs/sftptest"
	"github.com/rescale/twinpane/internal/storage"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteLocal(t *testing.T) {
	ctx := context.Background()
	svc := NewFileService(nil, nil)
	fs := localfs.New()

	tests := []struct {
		name      string
		files     []string
		dirs      []string
		target    string
		recursive bool
		wantErr   error
		wantFiles int
		wantDirs  int
		gone      bool
	}{
		{name: "single file", files: []string{"a.txt"}, target: "a.txt", wantFiles: 1, gone: true},
		{name: "empty dir", dirs: []string{"d"}, target: "d", wantDirs: 1, gone: true},
		{name: "non-empty dir without recursion", files: []string{"d/x"}, target: "d", wantErr: ErrDirectory},
		{name: "tree", files: []string{"d/x", "d/e/y", "d/e/z"}, dirs: []string{"d/empty"}, target: "d", recursive: true, wantFiles: 3, wantDirs: 3, gone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, filepath.Join(root, filepath.FromSlash(f)), "data")
			}
			for _, d := range tt.dirs {
				if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), 0755); err != nil {
					t.Fatal(err)
				}
			}

			target := filepath.Join(root, tt.target)
			res, err := svc.Delete(ctx, fs, target, tt.recursive)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Delete() error = %v, want %v", err, tt.wantErr)
				}
				if _, statErr := os.Stat(target); statErr != nil {
					t.Errorf("target should survive a refused delete: %v", statErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if res.Files != tt.wantFiles || res.Dirs != tt.wantDirs {
				t.Errorf("Delete() = %+v, want %d files %d dirs", res, tt.wantFiles, tt.wantDirs)
			}
			if _, statErr := os.Stat(target); tt.gone && !os.IsNotExist(statErr) {
				t.Errorf("target still exists: %v", statErr)
			}
		})
	}
}

func TestDeleteRefusesRoot(t *testing.T) {
	svc := NewFileService(nil, nil)
	root := string(filepath.Separator)
	if vol := filepath.VolumeName(os.TempDir()); vol != "" {
		root = vol + root
	}
	if _, err := svc.Delete(context.Background(), localfs.New(), root, true); !errors.Is(err, ErrRootPath) {
		t.Errorf("Delete(root) error = %v, want ErrRootPath", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	svc := NewFileService(nil, nil)
	_, err := svc.Delete(context.Background(), localfs.New(), filepath.Join(t.TempDir(), "nope"), false)
	if !storage.IsNotExist(err) {
		t.Errorf("Delete(missing) error = %v, want not-exist", err)
	}
}

func mkRemote(t *testing.T, c *sftpfs.Client, files map[string]string, dirs ...string) {
	t.Helper()
	ctx := context.Background()
	for _, d := range dirs {
		if err := c.Mkdir(ctx, d); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	for p, content := range files {
		w, err := c.Create(ctx, p)
		if err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDeleteRemoteRecursive(t *testing.T) {
	ctx := context.Background()
	remote := sftptest.NewRemote(t, sftpfs.Options{})
	mkRemote(t, remote, map[string]string{
		"/r/a.txt":     "1",
		"/r/sub/b.txt": "22",
		"/keep.txt":    "3",
	}, "/r", "/r/sub", "/r/sub/empty")

	svc := NewFileService(nil, nil)
	res, err := svc.Delete(ctx, remote, "/r", true)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Files != 2 || res.Dirs != 3 {
		t.Errorf("Delete() = %+v, want 2 files 3 dirs", res)
	}
	if _, err := remote.Stat(ctx, "/r"); !storage.IsNotExist(err) {
		t.Errorf("/r still present: %v", err)
	}
	if _, err := remote.Stat(ctx, "/keep.txt"); err != nil {
		t.Errorf("sibling removed: %v", err)
	}
}

func TestDeleteItemsContinuesAfterFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "1")
	writeFile(t, filepath.Join(root, "c"), "3")

	svc := NewFileService(nil, nil)
	res := svc.DeleteItems(context.Background(), localfs.New(), root, []string{"a", "missing", "../c", "c"}, false)
	if res.Deleted != 2 || res.Failed != 2 {
		t.Errorf("DeleteItems() = %+v", res)
	}
	if _, ok := res.Failures["missing"]; !ok {
		t.Error("missing entry should be reported")
	}
	if _, err := os.Stat(filepath.Join(root, "c")); !os.IsNotExist(err) {
		t.Error("c should be deleted")
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old"), "x")
	writeFile(t, filepath.Join(root, "taken"), "y")
	svc := NewFileService(nil, nil)
	fs := localfs.New()

	if _, err := svc.Rename(ctx, fs, root, "old", "taken"); !errors.Is(err, ErrExists) {
		t.Errorf("rename onto existing: %v, want ErrExists", err)
	}
	if _, err := svc.Rename(ctx, fs, root, "old", "a/b"); err == nil {
		t.Error("rename to a name with a separator should fail")
	}

	p, err := svc.Rename(ctx, fs, root, "old", "new")
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join(root, "new") {
		t.Errorf("Rename() path = %s", p)
	}
	if data, err := os.ReadFile(p); err != nil || string(data) != "x" {
		t.Errorf("renamed content = %q, %v", data, err)
	}
}

func TestRenameAndMoveRemote(t *testing.T) {
	ctx := context.Background()
	remote := sftptest.NewRemote(t, sftpfs.Options{})
	mkRemote(t, remote, map[string]string{"/d/f": "z"}, "/d", "/e")
	svc := NewFileService(nil, nil)

	if _, err := svc.Rename(ctx, remote, "/d", "f", "g"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Move(ctx, remote, "/d/g", "/e/g"); err != nil {
		t.Fatal(err)
	}
	if _, err := remote.Stat(ctx, "/e/g"); err != nil {
		t.Errorf("moved file missing: %v", err)
	}
	if err := svc.Move(ctx, remote, "/", "/x"); !errors.Is(err, ErrRootPath) {
		t.Errorf("Move(root) = %v, want ErrRootPath", err)
	}
}

func TestCreateFolder(t *testing.T) {
	ctx := context.Background()
	svc := NewFileService(nil, nil)

	t.Run("local", func(t *testing.T) {
		root := t.TempDir()
		p, err := svc.CreateFolder(ctx, localfs.New(), root, "new")
		if err != nil {
			t.Fatal(err)
		}
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("folder not created: %v", err)
		}
		if _, err := svc.CreateFolder(ctx, localfs.New(), root, "new"); !errors.Is(err, ErrExists) {
			t.Errorf("second create = %v, want ErrExists", err)
		}
	})

	t.Run("remote", func(t *testing.T) {
		remote := sftptest.NewRemote(t, sftpfs.Options{})
		p, err := svc.CreateFolder(ctx, remote, "/", "made")
		if err != nil {
			t.Fatal(err)
		}
		if e, err := remote.Stat(ctx, p); err != nil || !e.IsDir {
			t.Errorf("remote folder not created: %+v %v", e, err)
		}
	})

	for _, bad := range []string{"", ".", "..", "a/b", "a\\b"} {
		if _, err := svc.CreateFolder(ctx, localfs.New(), t.TempDir(), bad); err == nil {
			t.Errorf("CreateFolder(%q) should fail", bad)
		}
	}
}
