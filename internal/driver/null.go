package driver

import (
	"fmt"
	"sync"
	"time"
)

// Null is a headless driver for development and tests. It paces swaps
// at a fixed refresh rate and otherwise discards frames, standing in
// for the GPIO panel engine on machines without the wall attached.
type Null struct {
	width   int
	height  int
	refresh time.Duration

	mu    sync.Mutex
	front *frameCanvas
	last  time.Time
	swaps uint64
}

// NewNull creates a null driver refreshing at refreshHz (0 = 60).
func NewNull(width, height, refreshHz int) (*Null, error) {
	if refreshHz <= 0 {
		refreshHz = 60
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("driver: invalid display size %dx%d", width, height)
	}
	return &Null{
		width:   width,
		height:  height,
		refresh: time.Second / time.Duration(refreshHz),
	}, nil
}

func (d *Null) CreateCanvas() (Canvas, error) {
	return newFrameCanvas(d.width, d.height)
}

// SwapOnVSync sleeps out the remainder of the refresh interval, then
// exchanges c with the previously displayed canvas.
func (d *Null) SwapOnVSync(c Canvas) (Canvas, error) {
	fc, ok := c.(*frameCanvas)
	if !ok {
		return nil, fmt.Errorf("driver: foreign canvas %T", c)
	}
	d.mu.Lock()
	wait := d.refresh - time.Since(d.last)
	d.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = time.Now()
	d.swaps++
	prev := d.front
	d.front = fc
	if prev == nil {
		return newFrameCanvas(d.width, d.height)
	}
	return prev, nil
}

func (d *Null) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.front != nil {
		d.front.Buffer().Clear()
	}
}

func (d *Null) Close() error { return nil }

// Swaps reports how many frames have been presented (tests, status).
func (d *Null) Swaps() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.swaps
}

// Front returns the currently displayed canvas (tests).
func (d *Null) Front() Canvas {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.front == nil {
		return nil
	}
	return d.front
}
