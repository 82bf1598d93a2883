package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"udp_rx", snap.UDPRx,
					"stream_rx_bytes", snap.StreamRxBytes,
					"stream_connects", snap.Connects,
					"completed_udp", snap.CompletedUDP,
					"completed_stream", snap.CompletedStream,
					"completed_pattern", snap.CompletedPattern,
					"abandoned", snap.Abandoned,
					"presented", snap.Presented,
					"rejected", snap.Rejected,
					"malformed", snap.Malformed,
					"driver_tx", snap.DriverTx,
					"driver_dropped", snap.DriverDropped,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
