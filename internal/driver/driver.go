// Package driver is the boundary to the physical display. The core
// pipeline assumes nothing about a driver's timing beyond "SwapOnVSync
// happens at a refresh boundary and blocks until the returned canvas is
// safe to reuse".
package driver

import "github.com/jdhagood/go-ledwall-server/internal/frame"

// Canvas is an off-screen buffer a producer draws into.
type Canvas interface {
	Size() (w, h int)
	SetPixel(x, y int, r, g, b uint8)
}

// Driver owns the display hardware (or its stand-in).
type Driver interface {
	// CreateCanvas allocates a back buffer matching the display.
	CreateCanvas() (Canvas, error)
	// SwapOnVSync presents c at the next refresh boundary and returns
	// a canvas the caller may draw the following frame into. The
	// returned canvas is never the one currently being displayed.
	SwapOnVSync(c Canvas) (Canvas, error)
	// Clear blanks the display.
	Clear()
	Close() error
}

// frameCanvas adapts frame.Buffer to the Canvas interface. All bundled
// drivers use it as their canvas representation.
type frameCanvas struct {
	buf *frame.Buffer
}

func newFrameCanvas(w, h int) (*frameCanvas, error) {
	buf, err := frame.New(w, h)
	if err != nil {
		return nil, err
	}
	return &frameCanvas{buf: buf}, nil
}

func (c *frameCanvas) Size() (int, int) { return c.buf.Width(), c.buf.Height() }

func (c *frameCanvas) SetPixel(x, y int, r, g, b uint8) { c.buf.SetPixel(x, y, r, g, b) }

// Buffer exposes the backing frame for bulk operations inside this package.
func (c *frameCanvas) Buffer() *frame.Buffer { return c.buf }
