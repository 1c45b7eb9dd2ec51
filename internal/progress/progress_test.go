package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rescale/twinpane/internal/transfer"
)

type recordingReporter struct {
	calls []string
}

func (r *recordingReporter) Start(total int64, description string) {
	r.calls = append(r.calls, "start "+description)
}
func (r *recordingReporter) Update(current int64) { r.calls = append(r.calls, "update") }
func (r *recordingReporter) Finish()              { r.calls = append(r.calls, "finish") }
func (r *recordingReporter) Error(err error)      { r.calls = append(r.calls, "error") }
func (r *recordingReporter) SetDescription(string) {
	r.calls = append(r.calls, "describe")
}

func TestSingleFileUI(t *testing.T) {
	rec := &recordingReporter{}
	ui := NewSingleFileUI(rec, &bytes.Buffer{}, false)

	ui.Observe(transfer.Progress{Path: "dir/file.bin", BytesTransferred: 5, BytesTotal: 10})
	ui.Observe(transfer.Progress{Path: "dir/file.bin", BytesTransferred: 10, BytesTotal: 10})
	ui.Complete("dir/file.bin", 10, nil)
	ui.Wait()

	want := []string{"start file.bin", "update", "update", "finish"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestSingleFileUIError(t *testing.T) {
	rec := &recordingReporter{}
	ui := NewSingleFileUI(rec, &bytes.Buffer{}, false)
	ui.Complete("x", 0, errors.New("boom"))
	if len(rec.calls) != 1 || rec.calls[0] != "error" {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestCLIProgressDraws(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressTo(&buf)
	p.Start(100, "upload.dat")
	p.Update(100)
	p.Finish()
	if !strings.Contains(buf.String(), "upload.dat") {
		t.Errorf("output %q does not mention the description", buf.String())
	}

	buf.Reset()
	p.Error(errors.New("disk full"))
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("error output = %q", buf.String())
	}
}

func TestNoOpProgress(t *testing.T) {
	var r Reporter = NewNoOpProgress()
	r.Start(1, "x")
	r.Update(1)
	r.SetDescription("y")
	r.Error(errors.New("z"))
	r.Finish()
}

func TestTreeUIWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTreeUITo(&buf, false)

	ui.Observe(transfer.Progress{Path: "f1.txt", BytesTransferred: 10, BytesTotal: 10})
	ui.Complete("f1.txt", 10, nil)
	ui.Observe(transfer.Progress{Path: "sub/f2.txt", BytesTransferred: 5, BytesTotal: 5})
	ui.Complete("sub/f2.txt", 5, nil)
	ui.Complete("sub/gone.txt", 0, errors.New("no such file"))
	ui.Wait()

	out := buf.String()
	for _, want := range []string{
		"Copying [1] f1.txt (10.0 B)",
		"Copying [2] sub/f2.txt (5.0 B)",
		"✓ f1.txt (10.0 B",
		"✗ sub/gone.txt: no such file",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if ui.Started() != 2 {
		t.Errorf("Started() = %d, want 2", ui.Started())
	}
	if ui.IsTerminal() || ui.Writer() != &buf {
		t.Error("non-terminal UI should write straight to its output")
	}
}

// Item results lag behind progress: the next file starts streaming before
// the previous file's result arrives.
func TestTreeUIBarsFinishOutOfOrder(t *testing.T) {
	var buf bytes.Buffer
	ui := NewTreeUITo(&buf, true)

	ui.Observe(transfer.Progress{Path: "a.txt", BytesTransferred: 5, BytesTotal: 5})
	ui.Observe(transfer.Progress{Path: "b.txt", BytesTransferred: 2, BytesTotal: 5})
	ui.Complete("a.txt", 5, nil)
	ui.Observe(transfer.Progress{Path: "b.txt", BytesTransferred: 5, BytesTotal: 5})
	ui.Observe(transfer.Progress{Path: "c.txt", BytesTransferred: 1, BytesTotal: 5})
	ui.Complete("b.txt", 5, nil)
	ui.Complete("c.txt", 1, errors.New("permission denied"))
	ui.Wait()

	tests := []struct {
		path    string
		aborted bool
	}{
		{"a.txt", false},
		{"b.txt", false},
		{"c.txt", true},
	}
	for _, tt := range tests {
		fb := ui.bars[tt.path]
		if fb == nil {
			t.Fatalf("no bar for %s", tt.path)
		}
		if !fb.done {
			t.Errorf("%s: bar not closed", tt.path)
		}
		if fb.aborted != tt.aborted {
			t.Errorf("%s: aborted = %v, want %v", tt.path, fb.aborted, tt.aborted)
		}
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"a.txt", 3, "a.txt"},
		{"a/b/c", 3, "a/b/c"},
		{"a/b/c/d/file.txt", 3, "…/c/d/file.txt"},
	}
	for _, tt := range tests {
		if got := truncatePath(tt.in, tt.n); got != tt.want {
			t.Errorf("truncatePath(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
