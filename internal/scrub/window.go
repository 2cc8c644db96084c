package scrub

import "bytes"

// Window tracks the rescan marker for one streamed output buffer. Output
// arrives in arbitrary chunks, so a control sequence or noise line can be
// split across deliveries; the window rescans from the last-output-start
// marker through the current write position so the pattern is still
// scrubbed once the full sequence has arrived.
type Window struct {
	set  *Set
	mark int
}

// NewWindow creates a window over an empty buffer. A nil set uses the
// process-wide default patterns.
func NewWindow(set *Set) *Window {
	if set == nil {
		set = Default()
	}
	return &Window{set: set}
}

// Append adds chunk to buf, scrubs the region between the marker and the
// new write position in place, and returns the resulting buffer. The
// marker then advances past every completed line; the trailing
// unterminated line is retained because a noise line or split escape
// sequence there may still be completed by the next delivery.
func (w *Window) Append(buf, chunk []byte) []byte {
	buf = append(buf, chunk...)
	if w.mark > len(buf) {
		w.mark = len(buf)
	}

	region := buf[w.mark:]
	cleaned := w.set.Scrub(string(region))
	if cleaned != string(region) {
		buf = append(buf[:w.mark], cleaned...)
	}

	if i := bytes.LastIndexByte(buf[w.mark:], '\n'); i >= 0 {
		w.mark += i + 1
	}
	return buf
}

// Mark returns the current scrub marker position.
func (w *Window) Mark() int {
	return w.mark
}

// Reset rewinds the marker, for reuse over a truncated buffer.
func (w *Window) Reset() {
	w.mark = 0
}
