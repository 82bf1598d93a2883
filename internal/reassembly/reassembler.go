// Package reassembly rebuilds complete frames from datagram chunks that
// may arrive out of order, duplicated, or not at all.
package reassembly

import (
	"fmt"
	"time"

	"github.com/jdhagood/go-ledwall-server/internal/chunk"
	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// DefaultMaxAge bounds how long a partial frame may wait for its
// missing chunks before the next arrival forces a reset. Matches the
// incomplete-frame timeout of the deployed receiver.
const DefaultMaxAge = 100 * time.Millisecond

// Reassembler accumulates chunks into a single reused target buffer.
// One live instance per transport; not safe for concurrent use.
//
// The buffer returned by Offer is the internal target. The caller must
// finish with it (hand it to the sink, which copies) before the next
// Offer call, which may overwrite it.
type Reassembler struct {
	chunkCap int
	buf      *frame.Buffer

	cur       uint16
	started   bool
	delivered bool
	expected  int
	got       []bool
	received  int
	firstAt   time.Time

	maxAge time.Duration
	now    func() time.Time
}

type Option func(*Reassembler)

// WithMaxAge sets the stale partial-frame eviction age; zero disables.
func WithMaxAge(d time.Duration) Option { return func(r *Reassembler) { r.maxAge = d } }

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Reassembler) {
		if now != nil {
			r.now = now
		}
	}
}

// New allocates a reassembler with its target buffer.
func New(width, height, chunkCap int, opts ...Option) (*Reassembler, error) {
	if chunkCap <= 0 {
		return nil, fmt.Errorf("reassembly: invalid chunk capacity %d", chunkCap)
	}
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	r := &Reassembler{
		chunkCap: chunkCap,
		buf:      buf,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Offer applies one chunk. It returns the complete frame exactly when
// the chunk finishes the current frame, and nil otherwise. Malformed
// chunks are dropped without error: the transport is best-effort and a
// hostile or corrupt sender must not disturb the last good frame.
func (r *Reassembler) Offer(c chunk.Chunk) *frame.Buffer {
	if c.Total == 0 {
		// A zero chunk count can describe no frame; accepting it would
		// present a near-empty buffer. Dropped before it can touch any
		// in-flight state.
		metrics.IncMalformed()
		return nil
	}
	if r.started && c.FrameID != r.cur {
		// A new frame id supersedes whatever was in flight. Partial
		// frames are abandoned silently, never delivered.
		r.abandon()
	}
	if r.started && r.maxAge > 0 && !r.delivered && r.received > 0 &&
		r.now().Sub(r.firstAt) > r.maxAge {
		// Sender vanished mid-frame and restarted with the same id;
		// do not wedge on the stale half.
		r.abandon()
	}
	if !r.started {
		r.begin(c)
	}
	if r.delivered {
		// Late duplicates of an already-presented frame.
		return nil
	}
	if int(c.Index) >= r.expected {
		metrics.IncMalformed()
		return nil
	}
	off := int(c.Index) * r.chunkCap
	if off+len(c.Payload) > r.buf.Size() {
		metrics.IncMalformed()
		return nil
	}
	copy(r.buf.Pix()[off:], c.Payload)
	if !r.got[c.Index] {
		r.got[c.Index] = true
		r.received++
	}
	if r.received == r.expected {
		r.delivered = true
		return r.buf
	}
	return nil
}

// begin resets all state for a fresh frame id. The target is zeroed so
// chunks lost from this frame cannot leak pixels of a previous one.
func (r *Reassembler) begin(c chunk.Chunk) {
	r.cur = c.FrameID
	r.started = true
	r.delivered = false
	r.expected = int(c.Total)
	if cap(r.got) >= r.expected {
		r.got = r.got[:r.expected]
		for i := range r.got {
			r.got[i] = false
		}
	} else {
		r.got = make([]bool, r.expected)
	}
	r.received = 0
	r.firstAt = r.now()
	r.buf.Clear()
}

func (r *Reassembler) abandon() {
	if r.started && !r.delivered && r.received > 0 {
		metrics.IncFrameAbandoned()
	}
	r.started = false
}

// Reset discards any in-flight partial frame (transport shutdown).
func (r *Reassembler) Reset() { r.abandon() }

// Pending reports whether an incomplete frame is currently in flight.
func (r *Reassembler) Pending() bool { return r.started && !r.delivered }
