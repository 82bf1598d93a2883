package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// Wire layout of one datagram (network byte order):
//
//	frame_id      u16   wrapping frame counter
//	chunk_index   u16   0-based position within the frame
//	total_chunks  u16   chunk count for this frame_id
//	payload       <= Capacity raw RGB bytes at offset chunk_index*Capacity
const (
	HeaderSize = 6
	// Capacity is the payload budget per datagram; header plus payload
	// fits a single 1500-byte MTU Ethernet frame.
	Capacity = 1024
)

// Sentinel errors for malformed datagrams. Callers count and drop;
// these are never fatal (best-effort transport).
var (
	ErrShortDatagram    = errors.New("chunk: datagram shorter than header")
	ErrOversizedPayload = errors.New("chunk: payload exceeds chunk capacity")
)

// Chunk is one decoded datagram. Payload aliases the receive buffer it
// was parsed from; consumers must copy before the buffer is reused.
type Chunk struct {
	FrameID uint16
	Index   uint16
	Total   uint16
	Payload []byte
}

// Parse decodes a received datagram in place.
func Parse(p []byte) (Chunk, error) {
	var c Chunk
	if len(p) < HeaderSize {
		metrics.IncMalformed()
		return c, fmt.Errorf("%w (%d bytes)", ErrShortDatagram, len(p))
	}
	if len(p)-HeaderSize > Capacity {
		metrics.IncMalformed()
		return c, fmt.Errorf("%w (%d bytes)", ErrOversizedPayload, len(p)-HeaderSize)
	}
	c.FrameID = binary.BigEndian.Uint16(p[0:2])
	c.Index = binary.BigEndian.Uint16(p[2:4])
	c.Total = binary.BigEndian.Uint16(p[4:6])
	c.Payload = p[HeaderSize:]
	return c, nil
}

// Append encodes c onto dst and returns the extended slice.
func Append(dst []byte, c Chunk) []byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint16(hdr[0:2], c.FrameID)
	binary.BigEndian.PutUint16(hdr[2:4], c.Index)
	binary.BigEndian.PutUint16(hdr[4:6], c.Total)
	dst = append(dst, hdr[:]...)
	return append(dst, c.Payload...)
}

// Split slices one frame payload into its wire chunks. The chunk
// payloads alias p. Used by senders and by tests exercising the
// reassembly path.
func Split(frameID uint16, p []byte, capacity int) []Chunk {
	if capacity <= 0 {
		capacity = Capacity
	}
	total := (len(p) + capacity - 1) / capacity
	if total == 0 {
		total = 1
	}
	out := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		lo := i * capacity
		hi := lo + capacity
		if hi > len(p) {
			hi = len(p)
		}
		out = append(out, Chunk{
			FrameID: frameID,
			Index:   uint16(i),
			Total:   uint16(total),
			Payload: p[lo:hi],
		})
	}
	return out
}
