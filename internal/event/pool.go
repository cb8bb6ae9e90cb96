package event

import (
	"bytes"
	"sync"
)

// maxPooledBuffer keeps one oversized datagram from pinning memory forever.
const maxPooledBuffer = 64 * 1024

// bufferPool provides encode buffers for the delivery hotpath.
// Every delivery worker encodes one datagram per cycle; pooling keeps
// that from allocating a fresh buffer each time.
//
// Usage:
//
//	buf := AcquireBuffer()
//	json.NewEncoder(buf).Encode(quotes)
//	conn.WriteToUDPAddrPort(buf.Bytes(), addr)
//	ReleaseBuffer(buf)  // Return to pool after the send
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// AcquireBuffer gets an empty buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// ReleaseBuffer resets buf and returns it to the pool.
func ReleaseBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Warmup pre-allocates encode buffers to reduce GC pressure at startup.
func Warmup(n int) {
	bufs := make([]*bytes.Buffer, 0, n)
	for i := 0; i < n; i++ {
		buf := AcquireBuffer()
		buf.Grow(512)
		bufs = append(bufs, buf)
	}
	for _, buf := range bufs {
		ReleaseBuffer(buf)
	}
}
