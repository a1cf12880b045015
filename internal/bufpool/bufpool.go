// Package bufpool recycles encode buffers for outgoing request bodies.
package bufpool

import (
	"bytes"
	"sync"
)

// maxRetained caps the capacity of buffers returned to the pool.
const maxRetained = 1 << 20

var pool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// Get returns an empty buffer.
func Get() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

// Put resets b and returns it to the pool. Oversized buffers are dropped.
func Put(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxRetained {
		return
	}
	b.Reset()
	pool.Put(b)
}
