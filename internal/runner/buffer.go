package runner

import (
	"bytes"
	"fmt"
)

// truncationMarker is appended to a stream that exceeded the output limit.
const truncationMarker = "\n[devterm: output truncated, %d bytes omitted]\n"

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
// Write never fails so the child process is never blocked on a full pipe.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int64
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	switch {
	case room <= 0:
		b.dropped += int64(len(p))
	case len(p) > room:
		b.buf.Write(p[:room])
		b.dropped += int64(len(p) - room)
	default:
		b.buf.Write(p)
	}
	return len(p), nil
}

// Truncated reports whether any bytes were dropped.
func (b *cappedBuffer) Truncated() bool { return b.dropped > 0 }

// Bytes returns a copy of the kept bytes, followed by the truncation marker
// when output was dropped.
func (b *cappedBuffer) Bytes() []byte {
	out := append([]byte(nil), b.buf.Bytes()...)
	if b.dropped > 0 {
		out = append(out, fmt.Sprintf(truncationMarker, b.dropped)...)
	}
	return out
}
