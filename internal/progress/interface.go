package progress

import (
	"io"

	"github.com/rescale/twinpane/internal/transfer"
)

// TransferUI renders the progress of one running transfer. Observe is
// called from the transfer goroutine; Complete may arrive from another
// goroutine (the event bus consumer), so implementations lock.
type TransferUI interface {
	// Observe receives every chunk boundary of the file currently being copied.
	Observe(p transfer.Progress)

	// Complete marks one file as finished, successfully or not.
	Complete(path string, bytes int64, err error)

	// Wait blocks until all bars are drawn for the last time.
	Wait()

	// Writer returns an io.Writer that safely outputs above the progress bars.
	Writer() io.Writer

	// IsTerminal returns true if output is to a terminal (progress bars are active)
	IsTerminal() bool
}
