// Package progress renders transfer progress on the terminal: a single
// progressbar for one file, one mpb bar per file for directory trees.
package progress

import (
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale/twinpane/internal/transfer"
)

// Reporter is a byte counter display for one stream.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements Reporter with a progress bar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter drawing on stderr.
func NewCLIProgress() *CLIProgress {
	return NewCLIProgressTo(os.Stderr)
}

// NewCLIProgressTo creates a CLI progress reporter drawing on out.
func NewCLIProgressTo(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// SingleFileUI drives one Reporter from transfer progress. It suits
// single-file transfers where there is only ever one path.
type SingleFileUI struct {
	reporter   Reporter
	out        io.Writer
	isTerminal bool

	mu       sync.Mutex
	started  bool
	finished bool
}

// NewSingleFileUI wraps reporter. out is where messages go.
func NewSingleFileUI(reporter Reporter, out io.Writer, isTerminal bool) *SingleFileUI {
	return &SingleFileUI{reporter: reporter, out: out, isTerminal: isTerminal}
}

// Observe implements TransferUI.
func (u *SingleFileUI) Observe(p transfer.Progress) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.started {
		u.reporter.Start(p.BytesTotal, path.Base(p.Path))
		u.started = true
	}
	u.reporter.Update(p.BytesTransferred)
	if p.BytesTransferred >= p.BytesTotal && !u.finished {
		u.reporter.Finish()
		u.finished = true
	}
}

// Complete implements TransferUI.
func (u *SingleFileUI) Complete(_ string, _ int64, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err != nil {
		u.reporter.Error(err)
		return
	}
	if u.started && !u.finished {
		u.reporter.Finish()
		u.finished = true
	}
}

// Wait implements TransferUI.
func (u *SingleFileUI) Wait() {}

// Writer implements TransferUI.
func (u *SingleFileUI) Writer() io.Writer { return u.out }

// IsTerminal implements TransferUI.
func (u *SingleFileUI) IsTerminal() bool { return u.isTerminal }
