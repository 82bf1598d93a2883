package frame

import "fmt"

// BytesPerPixel is the wire and in-memory pixel width (R, G, B).
const BytesPerPixel = 3

// Buffer is a fixed-size RGB pixel grid, row-major, origin top-left.
// Its backing slice is always exactly Width*Height*BytesPerPixel long.
// A Buffer is not safe for concurrent mutation; ownership is handed
// between producer and sink, never shared.
type Buffer struct {
	width  int
	height int
	pix    []byte
}

// New allocates a zeroed buffer for the given dimensions.
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid dimensions %dx%d", width, height)
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*BytesPerPixel),
	}, nil
}

// MustNew is New for static dimensions known to be valid (tests, defaults).
func MustNew(width, height int) *Buffer {
	b, err := New(width, height)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Size returns the total byte length of one frame.
func (b *Buffer) Size() int { return len(b.pix) }

// Pix exposes the backing slice for bulk copies. Callers must not
// resize it; writes outside reassembly/generation violate the
// single-writer ownership rule.
func (b *Buffer) Pix() []byte { return b.pix }

// SetPixel writes one pixel. Out-of-range coordinates are ignored:
// frame producers are best-effort and a stray coordinate must not
// corrupt neighboring rows or panic.
func (b *Buffer) SetPixel(x, y int, r, g, bl uint8) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	i := (y*b.width + x) * BytesPerPixel
	b.pix[i] = r
	b.pix[i+1] = g
	b.pix[i+2] = bl
}

// At returns the pixel at (x, y); zero for out-of-range coordinates.
func (b *Buffer) At(x, y int) (r, g, bl uint8) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return 0, 0, 0
	}
	i := (y*b.width + x) * BytesPerPixel
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// Clear zero-fills the buffer (black).
func (b *Buffer) Clear() {
	for i := range b.pix {
		b.pix[i] = 0
	}
}

// CopyFrom overwrites this buffer with src. Dimensions must match.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.width != b.width || src.height != b.height {
		return fmt.Errorf("frame: copy dimension mismatch %dx%d -> %dx%d",
			src.width, src.height, b.width, b.height)
	}
	copy(b.pix, src.pix)
	return nil
}

// FlipVertical mirrors the buffer across its horizontal axis in place.
// The stream wire format carries rows bottom-up (WebGL readback order)
// while the display origin is top-left; this is the single, named
// transform applied at the stream ingestion boundary.
func (b *Buffer) FlipVertical() {
	stride := b.width * BytesPerPixel
	tmp := make([]byte, stride)
	for top, bot := 0, b.height-1; top < bot; top, bot = top+1, bot-1 {
		tr := b.pix[top*stride : top*stride+stride]
		br := b.pix[bot*stride : bot*stride+stride]
		copy(tmp, tr)
		copy(tr, br)
		copy(br, tmp)
	}
}
