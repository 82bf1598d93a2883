// Package sink double-buffers completed frames between the producers
// and the display driver. Producers write whole frames; the presenter
// loop swaps front and back at the driver's vsync boundary. The driver
// only ever sees the front buffer, so a torn frame (part old pixels,
// part new) is impossible by construction.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jdhagood/go-ledwall-server/internal/driver"
	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// Sink holds exactly two frame buffers. Write fills the back buffer;
// the swap in present exchanges the two pointers under the lock and is
// the sole synchronization point between producer and consumer.
type Sink struct {
	mu    sync.Mutex
	front *frame.Buffer
	back  *frame.Buffer
	fresh bool
	avail chan struct{}

	logger *slog.Logger
}

type Option func(*Sink)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New allocates both buffers for the given display dimensions.
func New(width, height int, opts ...Option) (*Sink, error) {
	front, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	back, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	s := &Sink{
		front:  front,
		back:   back,
		avail:  make(chan struct{}, 1),
		logger: logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Write copies src into the back buffer and marks it ready. The caller
// keeps ownership of src and may reuse it immediately. Latest complete
// frame wins: an unpresented back buffer is simply overwritten.
func (s *Sink) Write(src *frame.Buffer) error {
	s.mu.Lock()
	err := s.back.CopyFrom(src)
	if err == nil {
		s.fresh = true
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	select {
	case s.avail <- struct{}{}:
	default:
	}
	return nil
}

// swap exchanges front and back if a fresh frame is waiting, returning
// the buffer now exposed as front (nil when nothing new arrived).
func (s *Sink) swap() *frame.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh {
		return nil
	}
	s.front, s.back = s.back, s.front
	s.fresh = false
	return s.front
}

// Run drives the display: it blocks until a frame is written, swaps it
// to front, blits front into the driver canvas and presents at the
// driver's vsync boundary. Run returns when ctx is cancelled.
func (s *Sink) Run(ctx context.Context, d driver.Driver) error {
	canvas, err := d.CreateCanvas()
	if err != nil {
		return fmt.Errorf("sink: create canvas: %w", err)
	}
	s.logger.Info("presenter_start")
	defer s.logger.Info("presenter_end")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.avail:
		}
		front := s.swap()
		if front == nil {
			continue
		}
		blit(front, canvas)
		next, err := d.SwapOnVSync(canvas)
		if err != nil {
			// Driver failure is fatal for presentation; the network
			// side keeps running so the process can report unhealthy.
			metrics.IncError(metrics.ErrDriverWrite)
			return fmt.Errorf("sink: vsync swap: %w", err)
		}
		canvas = next
		metrics.IncFramePresented()
	}
}

// blit copies a frame into a driver canvas pixel by pixel, clipping to
// whichever of the two is smaller.
func blit(src *frame.Buffer, dst driver.Canvas) {
	w, h := dst.Size()
	if src.Width() < w {
		w = src.Width()
	}
	if src.Height() < h {
		h = src.Height()
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := src.At(x, y)
			dst.SetPixel(x, y, r, g, b)
		}
	}
}

// Buffers reports the two internal buffers (tests assert front and back
// never alias across swaps).
func (s *Sink) Buffers() (front, back *frame.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.front, s.back
}
