package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/docs", filepath.Join(home, "docs")},
		{"~other/docs", "~other/docs"},
		{"/tmp/x", "/tmp/x"},
		{"rel", "rel"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandHome(tt.in)
			if err != nil {
				t.Fatalf("ExpandHome(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveAbsolutePathMissingTail(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveAbsolutePath(filepath.Join(dir, "not", "yet"))
	if err != nil {
		t.Fatalf("ResolveAbsolutePath() error = %v", err)
	}
	if want := filepath.Join(dir, "not", "yet"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAbsolutePathSymlink(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := ResolveAbsolutePath(filepath.Join(link, "child"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(real, "child"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveRelativeTo(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := ResolveRelativeTo(dir, "sub")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "sub"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, err = ResolveRelativeTo(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if got != dir {
		t.Errorf("empty path: got %q, want %q", got, dir)
	}
}
