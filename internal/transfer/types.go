// Package transfer copies files and directory trees between the two panes
// and coordinates one running transfer at a time.
package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/rescale/twinpane/internal/models"
)

// Status is the terminal status of a transfer.
type Status string

const (
	StatusCompleted          Status = "completed"           // Every leaf copied
	StatusPartiallyCompleted Status = "partially_completed" // At least one leaf failed
	StatusRejected           Status = "rejected"            // Refused before any I/O
	StatusCancelled          Status = "cancelled"           // Stopped between leaves
)

var (
	// ErrSelfCopy rejects a transfer whose destination is its own source
	// or lies inside it.
	ErrSelfCopy = errors.New("source and destination are the same")

	// ErrAlreadyRunning is returned by Coordinator.Start while a transfer runs.
	ErrAlreadyRunning = errors.New("a transfer is already running")

	// ErrCancelled is the Outcome error of a cancelled transfer.
	ErrCancelled = errors.New("transfer cancelled")

	// ErrInvalidRequest rejects malformed requests.
	ErrInvalidRequest = errors.New("invalid transfer request")
)

// Request asks for SourcePath (on the direction's source side) to be copied
// to DestPath (on the destination side). DestPath is the name the copy gets,
// not the directory it is placed in.
type Request struct {
	Direction  models.Direction
	SourcePath string
	DestPath   string
}

// Validate checks the request shape. It does no I/O.
func (r Request) Validate() error {
	if !r.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, r.Direction)
	}
	if r.SourcePath == "" {
		return fmt.Errorf("%w: source path is empty", ErrInvalidRequest)
	}
	if r.DestPath == "" {
		return fmt.Errorf("%w: destination path is empty", ErrInvalidRequest)
	}
	return nil
}

func (r Request) String() string {
	return fmt.Sprintf("%s %s -> %s", r.Direction, r.SourcePath, r.DestPath)
}

// Progress reports bytes streamed for the file currently being copied.
// Path is relative to the transfer's source root. BytesTransferred never
// decreases for a given Path.
type Progress struct {
	Path             string
	BytesTransferred int64
	BytesTotal       int64
}

// ProgressFunc receives Progress at every chunk boundary, on the transfer's goroutine.
type ProgressFunc func(Progress)

// Item is the result of one leaf copy.
type Item struct {
	Path  string // Relative to the source root
	Bytes int64
	Err   error
}

// ItemFunc receives every leaf result, on the transfer's goroutine.
type ItemFunc func(Item)

// Failure records a leaf (or sub-directory) that could not be copied.
type Failure struct {
	Path       string // Relative to the source root
	SourcePath string // Full path on the source side
	Err        error  // *storage.AccessError or *storage.ConnectionError
}

// Outcome summarizes a finished transfer.
type Outcome struct {
	Status    Status
	Attempted int
	Succeeded int
	Failures  []Failure
	Bytes     int64
	Duration  time.Duration

	// Err is set for Rejected (the pre-flight error) and Cancelled (ErrCancelled).
	Err error
}

// Failed returns the number of failures.
func (o Outcome) Failed() int {
	return len(o.Failures)
}

// Summary is a one-line human description.
func (o Outcome) Summary() string {
	switch o.Status {
	case StatusRejected:
		return fmt.Sprintf("rejected: %v", o.Err)
	case StatusCancelled:
		return fmt.Sprintf("cancelled after %d of %d files (%s)", o.Succeeded, o.Attempted, models.FormatSize(o.Bytes))
	}
	s := fmt.Sprintf("%s: %d of %d files, %s in %s", o.Status, o.Succeeded, o.Attempted,
		models.FormatSize(o.Bytes), o.Duration.Round(time.Millisecond))
	if n := o.Failed(); n > 0 {
		s += fmt.Sprintf(", %d failed", n)
	}
	return s
}
