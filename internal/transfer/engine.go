package transfer

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rescale/twinpane/internal/constants"
	"github.com/rescale/twinpane/internal/diskspace"
	"github.com/rescale/twinpane/internal/logging"
	"github.com/rescale/twinpane/internal/metrics"
	"github.com/rescale/twinpane/internal/models"
	"github.com/rescale/twinpane/internal/storage"
	"github.com/rescale/twinpane/internal/validation"
)

// Engine copies a file or directory tree from one side to the other.
// It holds no per-transfer state and can be shared.
type Engine struct {
	local     storage.Filesystem
	remote    storage.Filesystem
	chunkSize int
	logger    *logging.Logger
	metrics   *metrics.Collector
}

// Option configures an Engine.
type Option func(*Engine)

// WithChunkSize sets the streaming step. Values outside
// [MinChunkSize, MaxChunkSize] are clamped.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		switch {
		case n <= 0:
			n = constants.ChunkSize
		case n < constants.MinChunkSize:
			n = constants.MinChunkSize
		case n > constants.MaxChunkSize:
			n = constants.MaxChunkSize
		}
		e.chunkSize = n
	}
}

// WithLogger sets the logger for per-leaf debug records.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l.Component("transfer") }
}

// WithMetrics records leaf and transfer results on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine returns an engine over the two sides. remote may be a
// disconnected storage.Remote; transfers touching it are then rejected.
func NewEngine(local, remote storage.Filesystem, opts ...Option) *Engine {
	e := &Engine{
		local:     local,
		remote:    remote,
		chunkSize: constants.ChunkSize,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer runs req to completion on the calling goroutine.
//
// Pre-flight failures (bad request, self-copy, destination nested in the
// source, disconnected side) return StatusRejected without touching either
// side. Otherwise every leaf is attempted; failures are collected and the
// walk continues. ctx is checked before every leaf and every directory
// listing, never in the middle of a file.
func (e *Engine) Transfer(ctx context.Context, req Request, onProgress ProgressFunc) Outcome {
	return e.transfer(ctx, req, onProgress, nil)
}

func (e *Engine) transfer(ctx context.Context, req Request, onProgress ProgressFunc, onItem ItemFunc) Outcome {
	start := time.Now()
	direction := string(req.Direction)

	src, dst, err := e.preflight(req)
	if err != nil {
		e.logger.Warn().Err(err).Str("request", req.String()).Msg("Transfer rejected")
		e.metrics.TransferRejected(direction)
		return Outcome{Status: StatusRejected, Err: err, Duration: time.Since(start)}
	}

	e.metrics.TransferStarted()
	r := &run{
		engine:     e,
		req:        req,
		src:        src,
		dst:        dst,
		onProgress: onProgress,
		onItem:     onItem,
		// Port calls never see cancellation: a file in flight always finishes.
		ioCtx: context.WithoutCancel(ctx),
	}
	if rv, ok := src.(storage.Resolver); ok {
		r.resolver = rv
	}
	r.start(ctx)

	out := r.out
	out.Duration = time.Since(start)
	switch {
	case r.cancelled:
		out.Status = StatusCancelled
		out.Err = ErrCancelled
	case len(out.Failures) > 0:
		out.Status = StatusPartiallyCompleted
	default:
		out.Status = StatusCompleted
	}

	e.metrics.TransferFinished(direction, string(out.Status), out.Duration)
	e.logger.Info().
		Str("request", req.String()).
		Str("status", string(out.Status)).
		Int("attempted", out.Attempted).
		Int("succeeded", out.Succeeded).
		Int("failed", out.Failed()).
		Int64("bytes", out.Bytes).
		Dur("duration", out.Duration).
		Msg("Transfer finished")
	return out
}

func (e *Engine) sideFS(s models.Side) storage.Filesystem {
	if s == models.SideRemote {
		return e.remote
	}
	return e.local
}

// preflight validates req without any port I/O.
func (e *Engine) preflight(req Request) (storage.Filesystem, storage.Filesystem, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	src := e.sideFS(req.Direction.Source())
	dst := e.sideFS(req.Direction.Dest())
	for _, fs := range []storage.Filesystem{src, dst} {
		if fs == nil {
			return nil, nil, &storage.ConnectionError{Err: storage.ErrNotConnected}
		}
		if c, ok := fs.(storage.Connector); ok && !c.Connected() {
			return nil, nil, &storage.ConnectionError{Err: storage.ErrNotConnected}
		}
	}

	if req.Direction.Source() == req.Direction.Dest() {
		rules := src.Paths()
		ns, nd := rules.Normalize(req.SourcePath), rules.Normalize(req.DestPath)
		if ns == nd {
			return nil, nil, ErrSelfCopy
		}
		if validation.IsWithin(ns, nd, separator(src.Side())) {
			return nil, nil, &nestedError{source: ns, dest: nd}
		}
	}
	return src, dst, nil
}

func separator(s models.Side) string {
	if s == models.SideLocal {
		return string(os.PathSeparator)
	}
	return "/"
}

type nestedError struct {
	source, dest string
}

func (e *nestedError) Error() string {
	return "destination " + e.dest + " is inside source " + e.source
}

func (e *nestedError) Unwrap() error { return ErrSelfCopy }

// run is the state of one transfer.
type run struct {
	engine     *Engine
	req        Request
	src, dst   storage.Filesystem
	onProgress ProgressFunc
	onItem     ItemFunc
	ioCtx      context.Context
	resolver   storage.Resolver // nil when src cannot resolve links

	out       Outcome
	cancelled bool
	aborted   bool // connection lost: remaining leaves are not attempted
}

func (r *run) stopped(ctx context.Context) bool {
	if r.cancelled || r.aborted {
		return true
	}
	if ctx.Err() != nil {
		r.cancelled = true
		return true
	}
	return false
}

func (r *run) start(ctx context.Context) {
	if r.stopped(ctx) {
		return
	}
	rootName := r.src.Paths().Base(r.req.SourcePath)

	entry, err := r.src.Stat(r.ioCtx, r.req.SourcePath)
	if err != nil {
		r.out.Attempted++
		r.fail(rootName, r.req.SourcePath, err)
		return
	}
	if entry.IsDir {
		r.copyDir(ctx, r.req.SourcePath, r.req.DestPath, "", r.rootChain())
		return
	}

	if err := r.ensureParent(r.req.DestPath); err != nil {
		r.out.Attempted++
		r.fail(rootName, r.req.SourcePath, err)
		return
	}
	r.copyLeaf(ctx, r.req.SourcePath, r.req.DestPath, rootName, entry.Size)
}

// rootChain starts the list of resolved directories being copied. It is nil
// when the source side cannot resolve links.
func (r *run) rootChain() []string {
	if r.resolver == nil {
		return nil
	}
	root, err := r.resolver.RealPath(r.ioCtx, r.req.SourcePath)
	if err != nil {
		r.engine.logger.Debug().Err(err).Str("path", r.req.SourcePath).Msg("Cannot resolve source, link loops are not detected")
		return nil
	}
	return []string{r.src.Paths().Normalize(root)}
}

// descend extends chain with the resolved path of a child directory. A
// directory already on the chain means a link led back to a parent.
func (r *run) descend(chain []string, srcPath string, child models.Entry) ([]string, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	rules := r.src.Paths()
	next := rules.Join(chain[len(chain)-1], child.Name)
	if child.Link {
		resolved, err := r.resolver.RealPath(r.ioCtx, srcPath)
		if err != nil {
			return nil, err
		}
		next = rules.Normalize(resolved)
	}
	for _, dir := range chain {
		if dir == next {
			return nil, storage.NewAccessError("list", srcPath, storage.ErrSymlinkLoop)
		}
	}
	return append(chain[:len(chain):len(chain)], next), nil
}

// copyDir reproduces srcDir at dstDir, then recurses depth-first in name order.
// chain holds the resolved paths from the root down to srcDir.
func (r *run) copyDir(ctx context.Context, srcDir, dstDir, rel string, chain []string) {
	if r.stopped(ctx) {
		return
	}
	display := rel
	if display == "" {
		display = r.src.Paths().Base(srcDir)
	}

	if err := r.ensureDir(dstDir); err != nil {
		r.out.Attempted++
		r.fail(display, srcDir, err)
		return
	}

	children, err := r.src.List(r.ioCtx, srcDir)
	if err != nil {
		r.out.Attempted++
		r.fail(display, srcDir, err)
		return
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	srcRules, dstRules := r.src.Paths(), r.dst.Paths()
	for _, child := range children {
		if r.stopped(ctx) {
			return
		}
		childRel := child.Name
		if rel != "" {
			childRel = rel + "/" + child.Name
		}
		srcPath := srcRules.Join(srcDir, child.Name)

		if err := validation.ValidateFilename(child.Name); err != nil {
			r.out.Attempted++
			r.fail(childRel, srcPath, storage.NewAccessError("list", srcPath, err))
			continue
		}

		dstPath := dstRules.Join(dstDir, child.Name)
		if child.IsDir {
			next, err := r.descend(chain, srcPath, child)
			if err != nil {
				r.out.Attempted++
				r.fail(childRel, srcPath, err)
				continue
			}
			r.copyDir(ctx, srcPath, dstPath, childRel, next)
		} else {
			r.copyLeaf(ctx, srcPath, dstPath, childRel, child.Size)
		}
	}
}

func (r *run) copyLeaf(ctx context.Context, srcPath, dstPath, rel string, size int64) {
	if r.stopped(ctx) {
		return
	}
	r.out.Attempted++

	n, err := r.copyFile(srcPath, dstPath, rel, size)
	direction := string(r.req.Direction)
	if err != nil {
		r.fail(rel, srcPath, err)
		r.engine.metrics.RecordFile(direction, n, false)
		if r.onItem != nil {
			r.onItem(Item{Path: rel, Bytes: n, Err: err})
		}
		return
	}

	r.out.Succeeded++
	r.out.Bytes += n
	r.engine.metrics.RecordFile(direction, n, true)
	r.engine.logger.Debug().Str("path", rel).Int64("bytes", n).Msg("Copied")
	if r.onItem != nil {
		r.onItem(Item{Path: rel, Bytes: n})
	}
}

// copyFile streams one file. The source is opened before the destination is
// created so a vanished source leaves nothing behind; a failed copy removes
// the partial destination.
func (r *run) copyFile(srcPath, dstPath, rel string, size int64) (int64, error) {
	onChunk := func(done, total int64) {
		if r.onProgress != nil {
			r.onProgress(Progress{Path: rel, BytesTransferred: done, BytesTotal: total})
		}
	}

	if r.dst.Side() == models.SideLocal {
		if err := diskspace.Check(dstPath, size, diskspace.DefaultMargin); err != nil {
			return 0, storage.NewAccessError("create", dstPath, err)
		}
	}

	// Download through the remote port's whole-file helper.
	if remote, ok := r.src.(storage.Remote); ok && r.dst.Side() == models.SideLocal {
		w, err := r.dst.Create(r.ioCtx, dstPath)
		if err != nil {
			return 0, err
		}
		n, err := remote.GetFile(r.ioCtx, srcPath, w, onChunk)
		if cerr := w.Close(); err == nil && cerr != nil {
			err = storage.NewAccessError("close", dstPath, cerr)
		}
		if err != nil {
			r.discard(dstPath)
			return n, err
		}
		return n, nil
	}

	rc, err := r.src.Open(r.ioCtx, srcPath)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	// Upload through the remote port's whole-file helper.
	if remote, ok := r.dst.(storage.Remote); ok && r.src.Side() == models.SideLocal {
		n, err := remote.PutFile(r.ioCtx, rc, size, dstPath, onChunk)
		if err != nil {
			r.discard(dstPath)
			return n, err
		}
		return n, nil
	}

	w, err := r.dst.Create(r.ioCtx, dstPath)
	if err != nil {
		return 0, err
	}
	n, err := storage.CopyChunked(w, rc, size, r.engine.chunkSize, onChunk)
	if err != nil {
		err = classify("copy", srcPath, err)
	}
	if cerr := w.Close(); err == nil && cerr != nil {
		err = storage.NewAccessError("close", dstPath, cerr)
	}
	if err != nil {
		r.discard(dstPath)
		return n, err
	}
	return n, nil
}

// discard removes a partial destination file, best effort.
func (r *run) discard(dstPath string) {
	if err := r.dst.Remove(r.ioCtx, dstPath); err != nil && !storage.IsNotExist(err) {
		r.engine.logger.Debug().Err(err).Str("path", dstPath).Msg("Failed to remove partial file")
	}
}

// ensureDir makes dir exist as a directory, creating missing ancestors.
// An existing directory is reused; anything else in the way is an error.
func (r *run) ensureDir(dir string) error {
	entry, err := r.dst.Stat(r.ioCtx, dir)
	if err == nil {
		if entry.IsDir {
			return nil
		}
		return storage.NewAccessError("mkdir", dir, storage.ErrNotDirectory)
	}
	if !storage.IsNotExist(err) {
		return err
	}

	if err := r.ensureParent(dir); err != nil {
		return err
	}
	if err := r.dst.Mkdir(r.ioCtx, dir); err != nil {
		// Lost a race with another writer; fine if it is a directory now.
		if entry, serr := r.dst.Stat(r.ioCtx, dir); serr == nil && entry.IsDir {
			return nil
		}
		return err
	}
	return nil
}

func (r *run) ensureParent(p string) error {
	rules := r.dst.Paths()
	parent := rules.Dir(p)
	if parent == p || parent == "" {
		return nil
	}
	return r.ensureDir(parent)
}

func (r *run) fail(rel, srcPath string, err error) {
	r.out.Failures = append(r.out.Failures, Failure{Path: rel, SourcePath: srcPath, Err: err})
	r.engine.logger.Debug().Err(err).Str("path", rel).Msg("Copy failed")
	if storage.IsConnectionError(err) {
		r.aborted = true
	}
}

// classify wraps a raw stream error. Transport failures become connection
// errors so the walk stops instead of failing every remaining leaf.
func classify(op, p string, err error) error {
	var ae *storage.AccessError
	var ce *storage.ConnectionError
	if errors.As(err, &ae) || errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || storage.IsNetworkError(err) {
		return &storage.ConnectionError{Err: err}
	}
	return storage.NewAccessError(op, p, err)
}
