package logging

import (
	"os"
	"sync"
)

// defaultRingSize bounds the in-memory crash log. Session output can be
// chatty, so the window is deliberately small.
const defaultRingSize = 1 << 20

// RingBuffer is a fixed-capacity circular io.Writer. Writes never block
// and never fail; once capacity is reached the oldest bytes are
// overwritten. It holds the most recent log records for crash dumps
// when file logging is rotated away or disabled.
type RingBuffer struct {
	mu      sync.Mutex
	data    []byte
	w       int  // next write offset
	wrapped bool // the buffer has overwritten old data at least once
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes.
// A non-positive size gets defaultRingSize.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultRingSize
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write implements io.Writer.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	if n >= len(rb.data) {
		// Oversized record: only the tail survives.
		copy(rb.data, p[n-len(rb.data):])
		rb.w = 0
		rb.wrapped = true
		return n, nil
	}
	for len(p) > 0 {
		c := copy(rb.data[rb.w:], p)
		p = p[c:]
		rb.w += c
		if rb.w == len(rb.data) {
			rb.w = 0
			rb.wrapped = true
		}
	}
	return n, nil
}

// Len reports how many bytes are currently retained.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.wrapped {
		return len(rb.data)
	}
	return rb.w
}

// Bytes returns the retained bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.wrapped {
		out := make([]byte, rb.w)
		copy(out, rb.data[:rb.w])
		return out
	}
	out := make([]byte, len(rb.data))
	c := copy(out, rb.data[rb.w:])
	copy(out[c:], rb.data[:rb.w])
	return out
}

// DumpToFile writes the retained bytes to path, oldest first.
func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o644)
}
