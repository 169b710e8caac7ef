// Package buffer provides the append-only-at-back, trim-only-at-front byte
// buffer shared between a connection driver and the http1 engine. The
// driver appends inbound bytes; the parser only ever consumes a prefix
// (spec.md §9, "Mutable buffer sharing" — no random-access mutation).
package buffer

import "bytes"

// Buffer is a growable byte container safe to share by reference between
// one driver goroutine and the engine it drives, since both run on that
// same goroutine (spec.md §5, "Shared resources").
type Buffer struct {
	data []byte
}

// New returns an empty Buffer.
func New() *Buffer { return &Buffer{} }

// Len reports the number of unconsumed bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the current contents. The returned slice is invalidated by
// the next Append or TrimPrefix call.
func (b *Buffer) Bytes() []byte { return b.data }

// Append adds p to the back of the buffer.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// TrimPrefix removes the first n bytes from the front.
func (b *Buffer) TrimPrefix(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.data = append(b.data[:0], b.data[n:]...)
}

// Take removes and returns a copy of the first n bytes (or fewer, if the
// buffer is shorter).
func (b *Buffer) Take(n int) []byte {
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	b.TrimPrefix(n)
	return out
}

// Index returns the position of the first occurrence of sep at or after
// from, or -1 if not present.
func (b *Buffer) Index(sep []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(b.data) {
		return -1
	}
	i := bytes.Index(b.data[from:], sep)
	if i < 0 {
		return -1
	}
	return from + i
}
