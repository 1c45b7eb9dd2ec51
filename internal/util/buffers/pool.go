// Package buffers provides reusable byte buffers for streaming file copies.
// Every leaf copy borrows one buffer for the duration of the stream, so a
// directory of many small files does not allocate per file.
package buffers

import (
	"sync"
	"sync/atomic"

	"github.com/rescale/twinpane/internal/constants"
)

// Pool monitoring counters
var (
	chunkAllocations int64
	chunkGets        int64
	oversizeAllocs   int64
)

// chunkPool holds buffers of the default chunk size.
var chunkPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&chunkAllocations, 1)
		buf := make([]byte, constants.ChunkSize)
		return &buf
	},
}

// Get returns a buffer of exactly size bytes. Default-sized buffers come from
// the pool; other sizes are allocated and will not be pooled on Put.
//
// Usage:
//
//	buf := buffers.Get(chunkSize)
//	defer buffers.Put(buf)
//	n, err := src.Read(*buf)
func Get(size int) *[]byte {
	if size <= 0 {
		size = constants.ChunkSize
	}
	if size != constants.ChunkSize {
		atomic.AddInt64(&oversizeAllocs, 1)
		buf := make([]byte, size)
		return &buf
	}
	atomic.AddInt64(&chunkGets, 1)
	return chunkPool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Only default-sized buffers are pooled.
// The buffer is cleared so file contents do not linger across copies.
func Put(buf *[]byte) {
	if buf != nil && len(*buf) == constants.ChunkSize {
		clear(*buf)
		chunkPool.Put(buf)
	}
}

// Stats returns current buffer pool statistics
type Stats struct {
	ChunkBufferSize  int
	ChunkAllocations int64
	ChunkGets        int64
	OtherSizeAllocs  int64
}

// GetStats returns a snapshot of the pool counters.
func GetStats() Stats {
	return Stats{
		ChunkBufferSize:  constants.ChunkSize,
		ChunkAllocations: atomic.LoadInt64(&chunkAllocations),
		ChunkGets:        atomic.LoadInt64(&chunkGets),
		OtherSizeAllocs:  atomic.LoadInt64(&oversizeAllocs),
	}
}
