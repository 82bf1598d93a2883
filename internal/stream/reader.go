// Package stream slices a reliable ordered byte stream into fixed-size
// frame payloads. The wire carries an infinite concatenation of frames
// with no header or delimiter, so framing is purely positional.
package stream

import (
	"github.com/jdhagood/go-ledwall-server/internal/frame"
)

// Reader tracks a running cursor into the current in-flight frame.
// One instance per connection; not safe for concurrent use.
//
// The buffer passed to onFrame is the internal target, reused for the
// next frame once the callback returns.
type Reader struct {
	buf    *frame.Buffer
	cursor int
}

// NewReader allocates a reader for the given frame dimensions.
func NewReader(width, height int) (*Reader, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: buf}, nil
}

// Feed appends p to the in-flight frame, invoking onFrame once per
// completed frame. A single call may complete zero, one, or several
// frames depending on how the peer's writes were coalesced.
func (r *Reader) Feed(p []byte, onFrame func(*frame.Buffer)) {
	size := r.buf.Size()
	for len(p) > 0 {
		n := copy(r.buf.Pix()[r.cursor:], p)
		r.cursor += n
		p = p[n:]
		if r.cursor == size {
			r.cursor = 0
			onFrame(r.buf)
		}
	}
}

// Reset discards the current partial frame (peer disconnect). The next
// byte fed is byte zero of a new frame.
func (r *Reader) Reset() { r.cursor = 0 }

// Pending returns how many bytes of the current frame have arrived.
func (r *Reader) Pending() int { return r.cursor }
