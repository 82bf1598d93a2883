// Package server owns the two network ingest paths: the lossy chunked
// datagram transport and the continuous stream transport. Each server
// runs as its own worker, reassembles complete frames and hands them to
// a publish function; partial or malformed input never surfaces as an
// error past this package.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jdhagood/go-ledwall-server/internal/chunk"
	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
	"github.com/jdhagood/go-ledwall-server/internal/reassembly"
)

// PublishFunc receives each completed frame. The buffer is owned by the
// transport and reused; implementations must copy before returning.
type PublishFunc func(*frame.Buffer)

// udpRcvBufSize mirrors the enlarged kernel receive buffer the deployed
// receiver requests: a full frame arrives as a burst of ~144 datagrams
// and the default buffer drops the tail of the burst under load.
const udpRcvBufSize = 1 << 20

// DatagramServer drives the chunked UDP transport.
type DatagramServer struct {
	mu      sync.RWMutex
	addr    string
	publish PublishFunc

	width    int
	height   int
	chunkCap int
	maxAge   time.Duration

	readyOnce sync.Once
	readyCh   chan struct{}
	logger    *slog.Logger
}

type DatagramOption func(*DatagramServer)

func WithDatagramListenAddr(a string) DatagramOption {
	return func(s *DatagramServer) { s.addr = a }
}

func WithDatagramPublish(fn PublishFunc) DatagramOption {
	return func(s *DatagramServer) { s.publish = fn }
}

// WithDatagramMaxAge overrides the stale partial-frame eviction age.
func WithDatagramMaxAge(d time.Duration) DatagramOption {
	return func(s *DatagramServer) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

func WithDatagramLogger(l *slog.Logger) DatagramOption {
	return func(s *DatagramServer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewDatagramServer configures the UDP transport for the given frame
// geometry. chunkCap <= 0 selects the wire default.
func NewDatagramServer(width, height, chunkCap int, opts ...DatagramOption) *DatagramServer {
	if chunkCap <= 0 {
		chunkCap = chunk.Capacity
	}
	s := &DatagramServer{
		addr:     ":5005",
		width:    width,
		height:   height,
		chunkCap: chunkCap,
		maxAge:   reassembly.DefaultMaxAge,
		readyCh:  make(chan struct{}),
		logger:   logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *DatagramServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *DatagramServer) setAddr(a string) { s.mu.Lock(); s.addr = a; s.mu.Unlock() }

// Ready is closed once the socket is bound.
func (s *DatagramServer) Ready() <-chan struct{} { return s.readyCh }

// listenConfig applies the socket options the original receiver sets:
// SO_REUSEADDR so a restarted daemon rebinds immediately, and a large
// SO_RCVBUF to absorb per-frame datagram bursts.
func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); e != nil {
					serr = e
					return
				}
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, udpRcvBufSize)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}
}

// Serve receives datagrams until ctx is cancelled. The receive buffer
// is owned by this worker and reused across iterations; the
// reassembler copies payloads out before the next receive.
func (s *DatagramServer) Serve(ctx context.Context) error {
	pc, err := listenConfig().ListenPacket(ctx, "udp", s.Addr())
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	}
	s.setAddr(pc.LocalAddr().String())
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("udp_listen", "addr", s.Addr(), "frame_bytes", s.width*s.height*frame.BytesPerPixel)

	go func() { <-ctx.Done(); _ = pc.Close() }()

	ras, err := reassembly.New(s.width, s.height, s.chunkCap, reassembly.WithMaxAge(s.maxAge))
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("reassembler: %w", err)
	}
	defer ras.Reset()

	// One byte of slack so a datagram larger than the configured chunk
	// capacity fills the buffer and is recognizable as truncated.
	buf := make([]byte, chunk.HeaderSize+s.chunkCap+1)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("udp_server_end")
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			wrap := fmt.Errorf("%w: %v", ErrRecv, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}
		metrics.IncUDPRx()
		if n == len(buf) {
			// The kernel truncated an oversized payload; the tail is
			// gone, so the chunk cannot be applied.
			metrics.IncMalformed()
			s.logger.Debug("udp_oversized_drop", "len", n)
			continue
		}
		c, err := chunk.Parse(buf[:n])
		if err != nil {
			// Malformed datagrams are dropped, never surfaced: a bad
			// peer must not disturb an otherwise healthy stream.
			s.logger.Debug("udp_malformed_drop", "error", err, "len", n)
			continue
		}
		if done := ras.Offer(c); done != nil {
			metrics.IncFrameCompleted(metrics.SourceUDP)
			if s.publish != nil {
				s.publish(done)
			}
		}
	}
}
