package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/transfer"
)

// TreeUI shows one mpb bar per file of a directory transfer. There is no
// whole-tree total, so files are numbered as they start.
type TreeUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool

	mu      sync.Mutex
	bars    map[string]*FileBar
	started int
}

// FileBar is the bar of a single file in a tree transfer.
type FileBar struct {
	bar        *mpb.Bar
	index      int
	path       string
	size       int64
	startTime  time.Time
	lastUpdate time.Time
	done       bool
	aborted    bool
}

// NewTreeUI creates a tree UI on stderr, drawing bars only when stderr is a terminal.
func NewTreeUI() *TreeUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableWindowsANSI(os.Stderr)
	}
	return NewTreeUITo(os.Stderr, isTerminal)
}

// NewTreeUITo creates a tree UI writing to out. Without a terminal it prints
// one line per started and finished file instead of bars.
func NewTreeUITo(out io.Writer, isTerminal bool) *TreeUI {
	u := &TreeUI{
		out:        out,
		isTerminal: isTerminal,
		bars:       make(map[string]*FileBar),
	}
	if isTerminal {
		u.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(100),
		)
	}
	return u
}

// Observe implements TransferUI.
func (u *TreeUI) Observe(p transfer.Progress) {
	u.mu.Lock()
	defer u.mu.Unlock()

	// Item results arrive on another goroutine, often after the next file
	// has started, so a bar is only closed by its own progress or by Complete.
	fb, ok := u.bars[p.Path]
	if !ok {
		fb = u.addBar(p.Path, p.BytesTotal)
	}

	if fb.done {
		return
	}
	if p.BytesTransferred >= p.BytesTotal {
		fb.finish(p.BytesTransferred)
		return
	}
	if fb.bar != nil {
		now := time.Now()
		fb.bar.EwmaSetCurrent(p.BytesTransferred, now.Sub(fb.lastUpdate))
		fb.lastUpdate = now
	}
}

// finish completes the bar at n bytes.
func (fb *FileBar) finish(n int64) {
	if fb.bar != nil {
		fb.bar.SetCurrent(n)
		fb.bar.SetTotal(-1, true)
	}
	fb.done = true
}

// abort drops the bar, leaving it on screen as unfinished.
func (fb *FileBar) abort() {
	if fb.bar != nil {
		fb.bar.Abort(false)
	}
	fb.aborted = true
	fb.done = true
}

func (u *TreeUI) addBar(p string, size int64) *FileBar {
	u.started++
	fb := &FileBar{
		index:      u.started,
		path:       p,
		size:       size,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	label := fmt.Sprintf("[%d] %s (%s)", fb.index, truncatePath(p, 3), models.FormatSize(size))
	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Copying %s\n", label)
	}

	u.bars[p] = fb
	return fb
}

// Complete implements TransferUI.
func (u *TreeUI) Complete(p string, bytes int64, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	fb := u.bars[p]
	if fb == nil {
		// Failed before any byte moved (open or create error).
		fb = &FileBar{path: p, startTime: time.Now(), done: true}
		u.bars[p] = fb
	}

	if !fb.done {
		if err == nil {
			fb.finish(bytes)
		} else {
			fb.abort()
		}
	}

	var msg string
	if err == nil {
		msg = fmt.Sprintf("✓ %s (%s, %s)\n", truncatePath(p, 3), models.FormatSize(bytes), time.Since(fb.startTime).Round(time.Millisecond))
	} else {
		msg = fmt.Sprintf("✗ %s: %v\n", truncatePath(p, 3), err)
	}
	// Write through mpb so the message lands above the bars.
	_, _ = u.Writer().Write([]byte(msg))
}

// Wait implements TransferUI. Bars still open are aborted first so mpb can shut down.
func (u *TreeUI) Wait() {
	u.mu.Lock()
	for _, fb := range u.bars {
		if !fb.done {
			fb.abort()
		}
	}
	u.mu.Unlock()

	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer implements TransferUI.
func (u *TreeUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal implements TransferUI.
func (u *TreeUI) IsTerminal() bool {
	return u.isTerminal
}

// Started returns how many files have shown up so far.
func (u *TreeUI) Started() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.started
}

// truncatePath keeps only the last n components of a slash path.
// Example: truncatePath("a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(p string, n int) string {
	parts := strings.Split(p, "/")
	if len(parts) <= n {
		return p
	}
	return "…/" + strings.Join(parts[len(parts)-n:], "/")
}
