// Package storage defines the capability surface a side (local disk or SFTP
// server) must provide to the browser and the transfer engine.
// The engine never depends on transport details beyond these interfaces.
package storage

import (
	"context"
	"io"

	"github.com/rescale/twinpane/internal/models"
)

// ChunkFunc receives cumulative progress for the file currently being streamed.
// transferred is non-decreasing for a given file; total is the size known up front.
type ChunkFunc func(transferred, total int64)

// PathRules captures how one side spells paths. Local paths follow the host OS,
// remote paths are always slash-separated.
type PathRules interface {
	Join(elem ...string) string
	Dir(path string) string
	Base(path string) string
	IsAbs(path string) bool

	// Normalize returns the canonical spelling used for identity comparison
	// (self-copy detection). It must not perform I/O against the side.
	Normalize(path string) string

	// IsRoot reports whether path has no navigable parent.
	IsRoot(path string) bool
}

// Filesystem is the port both sides implement.
type Filesystem interface {
	// Side identifies which pane this filesystem backs.
	Side() models.Side

	// Stat returns the entry for path, following symlinks.
	Stat(ctx context.Context, path string) (models.Entry, error)

	// List returns the immediate children of the directory at path, unsorted and unfiltered.
	List(ctx context.Context, path string) ([]models.Entry, error)

	// Open opens a file for streaming reads.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create creates or truncates a file for streaming writes.
	// The parent directory must already exist.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	Mkdir(ctx context.Context, path string) error
	Rmdir(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error

	Paths() PathRules
}

// Endpoint holds what is needed to reach and authenticate against a remote host.
type Endpoint struct {
	Host   string
	Port   int
	User   string
	Secret string
}

// Remote is the RemoteFilesystemPort: a Filesystem with a connection
// lifecycle plus whole-file get/put helpers.
type Remote interface {
	Filesystem

	// Connect dials and authenticates. Failures are *ConnectionError
	// (wrapping ErrAuth when the server rejected the credentials).
	Connect(ctx context.Context, ep Endpoint) error

	// Connected reports whether the remote side is usable.
	Connected() bool

	// GetFile streams remotePath into sink, calling onChunk at every chunk boundary.
	GetFile(ctx context.Context, remotePath string, sink io.Writer, onChunk ChunkFunc) (int64, error)

	// PutFile streams src (size bytes) into remotePath, calling onChunk at every chunk boundary.
	PutFile(ctx context.Context, src io.Reader, size int64, remotePath string, onChunk ChunkFunc) (int64, error)

	Close() error
}

// Resolver is implemented by filesystems that can resolve symbolic links.
// The transfer engine uses it to avoid walking into a link cycle.
type Resolver interface {
	// RealPath returns the absolute path of p with every link resolved.
	RealPath(ctx context.Context, p string) (string, error)
}

// Connector is implemented by filesystems that can be unreachable.
// The transfer engine checks it before any I/O.
type Connector interface {
	Connected() bool
}
