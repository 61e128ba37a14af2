// Package pool provides connection-scoped buffer reuse for ember's
// server shell, adapted from shockwave/pkg/shockwave/buffer_pool.go's
// sync.Pool-backed size-classed design — collapsed here to the single
// fixed read-buffer size the spec mandates (§5, default 4096 bytes).
package pool

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// ReadBufferSize is the default per-connection read buffer size (§5).
const ReadBufferSize = 4096

// connBufPool pools fixed-size []byte buffers for connection reads.
var connBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, ReadBufferSize)
		return &b
	},
}

// GetReadBuffer returns a zeroed ReadBufferSize-length buffer.
func GetReadBuffer() *[]byte {
	buf := connBufPool.Get().(*[]byte)
	for i := range *buf {
		(*buf)[i] = 0
	}
	return buf
}

// PutReadBuffer returns buf to the pool.
func PutReadBuffer(buf *[]byte) {
	connBufPool.Put(buf)
}

// responseBufPool pools the bytebufferpool.ByteBuffer used to assemble
// serialized responses before writing them to the connection, the same
// pooling discipline bolt/pool/context_pool.go applies to its Context
// pool (acquire/release around exactly one request's lifetime).
var responseBufPool bytebufferpool.Pool

// GetResponseBuffer acquires a pooled buffer for response serialization.
func GetResponseBuffer() *bytebufferpool.ByteBuffer {
	return responseBufPool.Get()
}

// PutResponseBuffer resets and returns buf to the pool.
func PutResponseBuffer(buf *bytebufferpool.ByteBuffer) {
	buf.Reset()
	responseBufPool.Put(buf)
}
