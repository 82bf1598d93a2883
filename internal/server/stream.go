package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
	"github.com/jdhagood/go-ledwall-server/internal/stream"
)

// ErrConnClosed marks an orderly or errored peer disconnect. It is the
// recoverable, expected condition of the stream transport: the server
// discards in-flight state and goes back to accepting.
var ErrConnClosed = errors.New("connection closed")

const defaultStreamReadBuf = 64 * 1024

// StreamFlip controls the vertical-axis translation applied to every
// ingested stream frame. The producing side renders with a bottom-left
// pixel origin (GL readback order) while the display is top-left; this
// is a fixed property of the wire, not a per-frame decision.
type StreamFlip bool

const (
	FlipVertical StreamFlip = true
	NoFlip       StreamFlip = false
)

// StreamServer drives the continuous TCP transport: one active peer at
// a time, served until disconnect, then back to accepting. Connection
// attempts made while a peer is active sit in the listen backlog.
type StreamServer struct {
	mu      sync.RWMutex
	addr    string
	publish PublishFunc

	width        int
	height       int
	flip         StreamFlip
	readDeadline time.Duration

	readyOnce sync.Once
	readyCh   chan struct{}
	logger    *slog.Logger
	nextConn  uint64
}

type StreamOption func(*StreamServer)

func WithStreamListenAddr(a string) StreamOption {
	return func(s *StreamServer) { s.addr = a }
}

func WithStreamPublish(fn PublishFunc) StreamOption {
	return func(s *StreamServer) { s.publish = fn }
}

func WithStreamFlip(f StreamFlip) StreamOption {
	return func(s *StreamServer) { s.flip = f }
}

// WithStreamReadDeadline bounds how long a connected peer may stay
// silent before the connection is dropped (0 disables).
func WithStreamReadDeadline(d time.Duration) StreamOption {
	return func(s *StreamServer) { s.readDeadline = d }
}

func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(s *StreamServer) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStreamServer(width, height int, opts ...StreamOption) *StreamServer {
	s := &StreamServer{
		addr:    "127.0.0.1:9999",
		width:   width,
		height:  height,
		flip:    FlipVertical,
		readyCh: make(chan struct{}),
		logger:  logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *StreamServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *StreamServer) setAddr(a string) { s.mu.Lock(); s.addr = a; s.mu.Unlock() }

// Ready is closed once the listener is bound.
func (s *StreamServer) Ready() <-chan struct{} { return s.readyCh }

// Serve accepts and services one peer at a time until ctx is cancelled.
func (s *StreamServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(mapErrToMetric(wrap))
		return wrap
	}
	s.setAddr(ln.Addr().String())
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("tcp_listen", "addr", s.Addr(),
		"frame_bytes", s.width*s.height*frame.BytesPerPixel, "flip", bool(s.flip))

	go func() { <-ctx.Done(); _ = ln.Close() }()

	reader, err := stream.NewReader(s.width, s.height)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("stream reader: %w", err)
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("tcp_server_end")
				return nil
			}
			if _, ok := err.(net.Error); ok { // transient
				time.Sleep(200 * time.Millisecond)
				continue
			}
			wrap := fmt.Errorf("%w: %v", ErrAccept, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}
		s.nextConn++
		connLogger := s.logger.With("conn_id", s.nextConn, "remote", conn.RemoteAddr().String())
		metrics.IncStreamConnect()
		connLogger.Info("stream_peer_connected")
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		// Cancellation must unblock a read in progress, not just the
		// accept loop.
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = s.serveConn(ctx, conn, reader)
		stop()
		_ = conn.Close()
		// Any partial frame dies with the connection.
		if reader.Pending() > 0 {
			metrics.IncFrameAbandoned()
		}
		reader.Reset()
		metrics.IncStreamDisconnect()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrConnClosed) {
			connLogger.Info("stream_peer_disconnected")
			continue
		}
		if err != nil {
			connLogger.Warn("stream_conn_error", "error", err)
		}
	}
}

// serveConn pumps one connection into the frame reader until the peer
// goes away. Short reads are fine: the reader accumulates positionally.
func (s *StreamServer) serveConn(ctx context.Context, conn net.Conn, reader *stream.Reader) error {
	buf := make([]byte, defaultStreamReadBuf)
	onFrame := func(fb *frame.Buffer) {
		if s.flip == FlipVertical {
			fb.FlipVertical()
		}
		metrics.IncFrameCompleted(metrics.SourceStream)
		if s.publish != nil {
			s.publish(fb)
		}
	}
	for {
		if s.readDeadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.readDeadline))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			metrics.AddStreamRxBytes(n)
			reader.Feed(buf[:n], onFrame)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return ErrConnClosed
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return ErrConnClosed
			}
			wrap := fmt.Errorf("%w: %v", ErrConnRead, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}
		select {
		case <-ctx.Done():
			return ErrConnClosed
		default:
		}
	}
}
