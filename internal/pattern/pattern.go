// Package pattern generates frames locally when no network producer is
// feeding the wall: fragment-shader style math evaluated per pixel at a
// fixed target rate.
package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// NumFFTBins is the audio spectrum size offered to patterns, matching
// what the browser capture sends.
const NumFFTBins = 32

// Shader computes one pixel. u and v are normalized [0,1] coordinates,
// t is seconds since start, fft is the current audio spectrum (never
// nil, all zeros when no audio is flowing).
type Shader func(u, v float64, t float64, fft []float64) (r, g, b uint8)

// FFTFunc supplies the current spectrum; nil means silence.
type FFTFunc func() []float64

// Rings renders expanding concentric rings from the center.
func Rings(u, v, t float64, fft []float64) (uint8, uint8, uint8) {
	px := (u - 0.5) * 2
	py := (v - 0.5) * 2
	d := math.Sqrt(px*px + py*py)
	// Bass energy pushes the ring frequency.
	ring := 0.5 + 0.5*math.Cos((10+8*fft[0])*d-t*2*math.Pi)
	cr := ring
	cg := 0.5 + 0.5*math.Sin(t+px*4)
	cb := 0.5 + 0.5*math.Sin(t+py*4)
	return clamp8(cr), clamp8(cg), clamp8(cb)
}

// Plasma renders the classic summed-sine plasma.
func Plasma(u, v, t float64, fft []float64) (uint8, uint8, uint8) {
	px := (u - 0.5) * 2
	py := (v - 0.5) * 2
	val := math.Sin(px*3+t*0.7) + math.Sin(py*4-t*1.3) + math.Sin((px+py)*5+t*0.5)
	val /= 3
	angle := 2 * math.Pi * (val + fft[1]*0.5)
	cr := 0.5 + 0.5*math.Cos(angle)
	cg := 0.5 + 0.5*math.Cos(angle+2.094) // +120 degrees
	cb := 0.5 + 0.5*math.Cos(angle+4.188) // +240 degrees
	return clamp8(cr), clamp8(cg), clamp8(cb)
}

func clamp8(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f * 255)
}

// ByName resolves a configured pattern name.
func ByName(name string) (Shader, error) {
	switch name {
	case "rings":
		return Rings, nil
	case "plasma":
		return Plasma, nil
	case "grid":
		return nil, nil // grid is panel-indexed, handled by GridShader
	default:
		return nil, fmt.Errorf("pattern: unknown pattern %q (use rings|plasma|grid)", name)
	}
}

// panelColors is the per-panel test palette for the grid pattern.
var panelColors = [][3]uint8{
	{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 0},
	{255, 0, 255}, {0, 255, 255}, {255, 128, 0}, {128, 0, 255},
	{128, 128, 128}, {255, 255, 255}, {128, 255, 0}, {0, 128, 255},
}

// GridShader returns a static test pattern coloring each panelW×panelH
// tile with a distinct color; used to verify panel wiring.
func GridShader(width, height, panelW, panelH int) Shader {
	cols := width / panelW
	if cols < 1 {
		cols = 1
	}
	return func(u, v, _ float64, _ []float64) (uint8, uint8, uint8) {
		x := int(u * float64(width-1))
		y := int(v * float64(height-1))
		idx := (y/panelH)*cols + x/panelW
		c := panelColors[idx%len(panelColors)]
		return c[0], c[1], c[2]
	}
}

// Source renders a shader into its own buffer at a fixed rate and
// publishes each frame through the same path as the network producers.
type Source struct {
	shader  Shader
	publish func(*frame.Buffer)
	fft     FFTFunc
	fps     int
	logger  *slog.Logger
}

type Option func(*Source)

// WithFFT installs an audio spectrum provider.
func WithFFT(fn FFTFunc) Option { return func(s *Source) { s.fft = fn } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSource(shader Shader, fps int, publish func(*frame.Buffer), opts ...Option) *Source {
	if fps <= 0 {
		fps = 30
	}
	s := &Source{
		shader:  shader,
		publish: publish,
		fps:     fps,
		logger:  logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run generates frames until ctx is cancelled.
func (s *Source) Run(ctx context.Context, width, height int) error {
	buf, err := frame.New(width, height)
	if err != nil {
		return err
	}
	s.logger.Info("pattern_start", "fps", s.fps)
	defer s.logger.Info("pattern_end")
	tick := time.NewTicker(time.Second / time.Duration(s.fps))
	defer tick.Stop()
	start := time.Now()
	silence := make([]float64, NumFFTBins)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
		t := time.Since(start).Seconds()
		fft := silence
		if s.fft != nil {
			if cur := s.fft(); len(cur) == NumFFTBins {
				fft = cur
			}
		}
		Render(buf, s.shader, t, fft)
		metrics.IncFrameCompleted(metrics.SourcePattern)
		s.publish(buf)
	}
}

// Render evaluates a shader over every pixel of dst.
func Render(dst *frame.Buffer, shader Shader, t float64, fft []float64) {
	w, h := dst.Width(), dst.Height()
	// One-pixel-wide or -tall walls pin that axis to 0 instead of 0/0.
	du := float64(max(w-1, 1))
	dv := float64(max(h-1, 1))
	for y := 0; y < h; y++ {
		v := float64(y) / dv
		for x := 0; x < w; x++ {
			u := float64(x) / du
			r, g, b := shader(u, v, t, fft)
			dst.SetPixel(x, y, r, g, b)
		}
	}
}
