package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/jdhagood/go-ledwall-server/internal/control"
	"github.com/jdhagood/go-ledwall-server/internal/frame"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
	"github.com/jdhagood/go-ledwall-server/internal/pattern"
	"github.com/jdhagood/go-ledwall-server/internal/server"
	"github.com/jdhagood/go-ledwall-server/internal/sink"
	"github.com/jdhagood/go-ledwall-server/internal/source"
)

// Panel geometry for the grid test pattern.
const (
	gridPanelW = 64
	gridPanelH = 64
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("ledwall-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("wall_config", "width", cfg.width, "height", cfg.height, "driver", cfg.driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	drv, cleanupDriver, derr := initDriver(cfg, l)
	if derr != nil {
		l.Error("driver_init_error", "error", derr)
		return
	}
	defer cleanupDriver()

	snk, err := sink.New(cfg.width, cfg.height, sink.WithLogger(l))
	if err != nil {
		l.Error("sink_init_error", "error", err)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := snk.Run(ctx, drv); err != nil {
			l.Error("present_error", "error", err)
			cancel()
		}
	}()

	// One source at a time owns the wall; others are rejected until the
	// holder goes idle.
	arb := source.New(source.WithTakeover(cfg.takeover))
	publishAs := func(name string) server.PublishFunc {
		return func(b *frame.Buffer) {
			if !arb.Claim(name) {
				metrics.IncFrameRejected()
				return
			}
			if err := snk.Write(b); err != nil {
				l.Error("sink_write_error", "source", name, "error", err)
			}
		}
	}

	udpSrv := server.NewDatagramServer(cfg.width, cfg.height, cfg.chunkCap,
		server.WithDatagramListenAddr(cfg.udpListen),
		server.WithDatagramPublish(publishAs(metrics.SourceUDP)),
		server.WithDatagramMaxAge(cfg.frameMaxAge),
		server.WithDatagramLogger(l),
	)
	go func() {
		if err := udpSrv.Serve(ctx); err != nil {
			l.Error("udp_server_error", "error", err)
			cancel()
		}
	}()

	streamSrv := server.NewStreamServer(cfg.width, cfg.height,
		server.WithStreamListenAddr(cfg.tcpListen),
		server.WithStreamPublish(publishAs(metrics.SourceStream)),
		server.WithStreamFlip(server.StreamFlip(cfg.streamFlip)),
		server.WithStreamReadDeadline(cfg.streamReadTO),
		server.WithStreamLogger(l),
	)
	go func() {
		if err := streamSrv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	ctlState := control.NewState()
	if cfg.controlAddr != "" {
		h := control.NewHandler(ctlState, func() control.Status {
			return control.Status{
				ActiveSource:    arb.Holder(),
				FramesPresented: metrics.Snap().Presented,
				Width:           cfg.width,
				Height:          cfg.height,
			}
		}, l)
		ctlSrv := &http.Server{Addr: cfg.controlAddr, Handler: h.Router()}
		go func() {
			l.Info("control_listen", "addr", cfg.controlAddr)
			if err := ctlSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				l.Error("control_server_error", "error", err)
			}
		}()
		defer func() { _ = ctlSrv.Shutdown(context.Background()) }()
	}

	if cfg.pattern != "off" {
		sh, perr := pattern.ByName(cfg.pattern)
		if perr != nil {
			l.Error("pattern_init_error", "error", perr)
			return
		}
		if sh == nil {
			sh = pattern.GridShader(cfg.width, cfg.height, gridPanelW, gridPanelH)
		}
		gen := pattern.NewSource(sh, cfg.patternFPS,
			publishAs(metrics.SourcePattern),
			pattern.WithFFT(ctlState.FFT),
			pattern.WithLogger(l),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gen.Run(ctx, cfg.width, cfg.height); err != nil {
				l.Error("pattern_error", "error", err)
			}
		}()
	}

	// Start mDNS advertisement once the stream listener is ready.
	go func() {
		if !cfg.mdnsEnable {
			return
		}
		select {
		case <-streamSrv.Ready():
		case <-ctx.Done():
			return
		}
		var portNum int
		if _, p, err := net.SplitHostPort(streamSrv.Addr()); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				portNum = pn
			}
		}
		cleanupMDNS, err := startMDNS(ctx, cfg, portNum)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
			return
		}
		l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", portNum)
		go func() { <-ctx.Done(); cleanupMDNS() }()
	}()

	// Ready when both listeners are bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-udpSrv.Ready():
		default:
			return false
		}
		select {
		case <-streamSrv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	drv.Clear()
	wg.Wait()
}
