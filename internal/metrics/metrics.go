package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	UDPRxDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_rx_datagrams_total",
		Help: "Total datagrams received on the chunked frame transport.",
	})
	StreamRxBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_rx_bytes_total",
		Help: "Total bytes received on the stream frame transport.",
	})
	StreamConnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_connects_total",
		Help: "Total accepted stream transport connections.",
	})
	StreamDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_disconnects_total",
		Help: "Total stream transport peer disconnects.",
	})
	FramesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "frames_completed_total",
		Help: "Complete frames produced, by source.",
	}, []string{"source"})
	FramesAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_abandoned_total",
		Help: "Partial frames discarded (superseded or evicted as stale).",
	})
	FramesPresented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_presented_total",
		Help: "Frames swapped to the display at a vsync boundary.",
	})
	FramesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_rejected_total",
		Help: "Complete frames dropped because another source holds the display.",
	})
	MalformedDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_datagrams_total",
		Help: "Total rejected malformed datagrams (short header, oversized or out-of-range payload).",
	})
	DriverTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_tx_frames_total",
		Help: "Frames written to the display driver link.",
	})
	DriverDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "driver_dropped_frames_total",
		Help: "Frames dropped because the display driver link was backed up.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Source label constants for FramesCompleted.
const (
	SourceUDP     = "udp"
	SourceStream  = "stream"
	SourcePattern = "pattern"
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrUDPRead     = "udp_read"
	ErrTCPAccept   = "tcp_accept"
	ErrTCPRead     = "tcp_read"
	ErrListen      = "listen"
	ErrDriverWrite = "driver_write"
	ErrControl     = "control_http"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness
// probe at /ready on the given address.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localUDPRx         uint64
	localStreamBytes   uint64
	localConnects      uint64
	localDisconnects   uint64
	localCompletedUDP  uint64
	localCompletedTCP  uint64
	localCompletedGen  uint64
	localAbandoned     uint64
	localPresented     uint64
	localRejected      uint64
	localMalformed     uint64
	localDriverTx      uint64
	localDriverDropped uint64
	localErrors        uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	UDPRx            uint64
	StreamRxBytes    uint64
	Connects         uint64
	Disconnects      uint64
	CompletedUDP     uint64
	CompletedStream  uint64
	CompletedPattern uint64
	Abandoned        uint64
	Presented        uint64
	Rejected         uint64
	Malformed        uint64
	DriverTx         uint64
	DriverDropped    uint64
	Errors           uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		UDPRx:            atomic.LoadUint64(&localUDPRx),
		StreamRxBytes:    atomic.LoadUint64(&localStreamBytes),
		Connects:         atomic.LoadUint64(&localConnects),
		Disconnects:      atomic.LoadUint64(&localDisconnects),
		CompletedUDP:     atomic.LoadUint64(&localCompletedUDP),
		CompletedStream:  atomic.LoadUint64(&localCompletedTCP),
		CompletedPattern: atomic.LoadUint64(&localCompletedGen),
		Abandoned:        atomic.LoadUint64(&localAbandoned),
		Presented:        atomic.LoadUint64(&localPresented),
		Rejected:         atomic.LoadUint64(&localRejected),
		Malformed:        atomic.LoadUint64(&localMalformed),
		DriverTx:         atomic.LoadUint64(&localDriverTx),
		DriverDropped:    atomic.LoadUint64(&localDriverDropped),
		Errors:           atomic.LoadUint64(&localErrors),
	}
}

// Wrapper helpers to keep call sites simple.
func IncUDPRx() {
	UDPRxDatagrams.Inc()
	atomic.AddUint64(&localUDPRx, 1)
}

func AddStreamRxBytes(n int) {
	StreamRxBytes.Add(float64(n))
	atomic.AddUint64(&localStreamBytes, uint64(n))
}

func IncStreamConnect() {
	StreamConnects.Inc()
	atomic.AddUint64(&localConnects, 1)
}

func IncStreamDisconnect() {
	StreamDisconnects.Inc()
	atomic.AddUint64(&localDisconnects, 1)
}

// IncFrameCompleted records one complete frame for the given source label.
func IncFrameCompleted(source string) {
	FramesCompleted.WithLabelValues(source).Inc()
	switch source {
	case SourceUDP:
		atomic.AddUint64(&localCompletedUDP, 1)
	case SourceStream:
		atomic.AddUint64(&localCompletedTCP, 1)
	case SourcePattern:
		atomic.AddUint64(&localCompletedGen, 1)
	}
}

func IncFrameAbandoned() {
	FramesAbandoned.Inc()
	atomic.AddUint64(&localAbandoned, 1)
}

func IncFramePresented() {
	FramesPresented.Inc()
	atomic.AddUint64(&localPresented, 1)
}

func IncFrameRejected() {
	FramesRejected.Inc()
	atomic.AddUint64(&localRejected, 1)
}

func IncMalformed() {
	MalformedDatagrams.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncDriverTx() {
	DriverTxFrames.Inc()
	atomic.AddUint64(&localDriverTx, 1)
}

func IncDriverDrop() {
	DriverDroppedFrames.Inc()
	atomic.AddUint64(&localDriverDropped, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrUDPRead, ErrTCPAccept, ErrTCPRead,
		ErrListen, ErrDriverWrite, ErrControl,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
	for _, src := range []string{SourceUDP, SourceStream, SourcePattern} {
		FramesCompleted.WithLabelValues(src).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
