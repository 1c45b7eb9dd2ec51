package storage

import (
	"errors"
	"io"
	"io/fs"

	"github.com/rescale/twinpane/internal/util/buffers"
)

// CopyChunked streams src into dst in chunkSize steps and reports cumulative
// progress after every written chunk. total is passed through to onChunk
// unchanged; it is not used to bound the copy.
func CopyChunked(dst io.Writer, src io.Reader, total int64, chunkSize int, onChunk ChunkFunc) (int64, error) {
	buf := buffers.Get(chunkSize)
	defer buffers.Put(buf)

	var written int64
	for {
		nr, rerr := src.Read(*buf)
		if nr > 0 {
			nw, werr := dst.Write((*buf)[:nr])
			if nw < 0 || nw > nr {
				nw = 0
				if werr == nil {
					werr = errors.New("invalid write result")
				}
			}
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if onChunk != nil {
				onChunk(written, total)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return written, rerr
		}
	}

	// Empty files still produce one progress report.
	if written == 0 && onChunk != nil {
		onChunk(0, total)
	}
	return written, nil
}

// LocalReader marks read failures of a local stream as access errors, so a
// remote port copying from it does not mistake them for a dropped session.
func LocalReader(r io.Reader) io.Reader { return localReader{r} }

// LocalWriter is LocalReader for the writing end of a download.
func LocalWriter(w io.Writer) io.Writer { return localWriter{w} }

type localReader struct{ r io.Reader }

func (l localReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	if err != nil && err != io.EOF {
		err = localError("read", err)
	}
	return n, err
}

type localWriter struct{ w io.Writer }

func (l localWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	if err != nil {
		err = localError("write", err)
	}
	return n, err
}

func localError(op string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return NewAccessError(pe.Op, pe.Path, pe.Err)
	}
	return NewAccessError(op, "local file", err)
}
