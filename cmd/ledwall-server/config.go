package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jdhagood/go-ledwall-server/internal/reassembly"
	"github.com/jdhagood/go-ledwall-server/internal/source"
)

type appConfig struct {
	width           int
	height          int
	udpListen       string
	tcpListen       string
	chunkCap        int
	frameMaxAge     time.Duration
	takeover        time.Duration
	streamReadTO    time.Duration
	streamFlip      bool
	driver          string
	serialDev       string
	baud            int
	pattern         string
	patternFPS      int
	controlAddr     string
	metricsAddr     string
	logFormat       string
	logLevel        string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

func parseFlags() (*appConfig, bool) {
	// A .env alongside the binary seeds the environment; real env wins.
	_ = godotenv.Load()

	cfg := &appConfig{}
	width := flag.Int("width", 256, "Wall width in pixels")
	height := flag.Int("height", 192, "Wall height in pixels")
	udpListen := flag.String("udp-listen", ":5005", "UDP datagram listen address")
	tcpListen := flag.String("tcp-listen", "127.0.0.1:9999", "TCP stream listen address")
	chunkCap := flag.Int("chunk-size", 1024, "Maximum UDP chunk payload size (bytes)")
	frameMaxAge := flag.Duration("frame-max-age", reassembly.DefaultMaxAge, "Discard partial UDP frames older than this")
	takeover := flag.Duration("source-takeover", source.DefaultTakeover, "Idle time before another source may take over the wall")
	streamReadTO := flag.Duration("stream-read-timeout", 60*time.Second, "Per-connection TCP read deadline (0 disables)")
	streamFlip := flag.Bool("stream-flip", true, "Flip TCP stream frames vertically (bottom-up producers)")
	driver := flag.String("driver", "null", "Display driver: null|serial")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "Serial device path (when --driver=serial)")
	baud := flag.Int("baud", 115200, "Serial baud rate")
	pattern := flag.String("pattern", "off", "Local pattern when idle: off|rings|plasma|grid")
	patternFPS := flag.Int("pattern-fps", 30, "Local pattern frame rate")
	controlAddr := flag.String("control-addr", "", "Control HTTP listen address (e.g., :8080); empty disables")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default ledwall-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.width = *width
	cfg.height = *height
	cfg.udpListen = *udpListen
	cfg.tcpListen = *tcpListen
	cfg.chunkCap = *chunkCap
	cfg.frameMaxAge = *frameMaxAge
	cfg.takeover = *takeover
	cfg.streamReadTO = *streamReadTO
	cfg.streamFlip = *streamFlip
	cfg.driver = *driver
	cfg.serialDev = *serialDev
	cfg.baud = *baud
	cfg.pattern = *pattern
	cfg.patternFPS = *patternFPS
	cfg.controlAddr = *controlAddr
	cfg.metricsAddr = *metricsAddr
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or listeners, only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.width <= 0 || c.height <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", c.width, c.height)
	}
	if c.chunkCap <= 0 || c.chunkCap > 65507 {
		return fmt.Errorf("chunk-size out of range: %d", c.chunkCap)
	}
	if c.frameMaxAge <= 0 {
		return fmt.Errorf("frame-max-age must be > 0")
	}
	if c.takeover <= 0 {
		return fmt.Errorf("source-takeover must be > 0")
	}
	if c.streamReadTO < 0 {
		return fmt.Errorf("stream-read-timeout must be >= 0")
	}
	switch c.driver {
	case "null", "serial":
	default:
		return fmt.Errorf("invalid driver: %s", c.driver)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	switch c.pattern {
	case "off", "rings", "plasma", "grid":
	default:
		return fmt.Errorf("invalid pattern: %s", c.pattern)
	}
	if c.patternFPS <= 0 || c.patternFPS > 240 {
		return fmt.Errorf("pattern-fps out of range: %d", c.patternFPS)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	return nil
}

// applyEnvOverrides maps LEDWALL_* environment variables to config fields
// unless a corresponding flag was explicitly set. Empty values are ignored.
// Durations accept Go time.ParseDuration format.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	envStr := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	envInt := func(flagName, env string, dst *int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	envDur := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	envBool := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	envInt("width", "LEDWALL_WIDTH", &c.width)
	envInt("height", "LEDWALL_HEIGHT", &c.height)
	envStr("udp-listen", "LEDWALL_UDP_LISTEN", &c.udpListen)
	envStr("tcp-listen", "LEDWALL_TCP_LISTEN", &c.tcpListen)
	envInt("chunk-size", "LEDWALL_CHUNK_SIZE", &c.chunkCap)
	envDur("frame-max-age", "LEDWALL_FRAME_MAX_AGE", &c.frameMaxAge)
	envDur("source-takeover", "LEDWALL_SOURCE_TAKEOVER", &c.takeover)
	envDur("stream-read-timeout", "LEDWALL_STREAM_READ_TIMEOUT", &c.streamReadTO)
	envBool("stream-flip", "LEDWALL_STREAM_FLIP", &c.streamFlip)
	envStr("driver", "LEDWALL_DRIVER", &c.driver)
	envStr("serial", "LEDWALL_SERIAL", &c.serialDev)
	envInt("baud", "LEDWALL_BAUD", &c.baud)
	envStr("pattern", "LEDWALL_PATTERN", &c.pattern)
	envInt("pattern-fps", "LEDWALL_PATTERN_FPS", &c.patternFPS)
	envStr("control-addr", "LEDWALL_CONTROL", &c.controlAddr)
	envStr("metrics-addr", "LEDWALL_METRICS", &c.metricsAddr)
	envStr("log-format", "LEDWALL_LOG_FORMAT", &c.logFormat)
	envStr("log-level", "LEDWALL_LOG_LEVEL", &c.logLevel)
	envDur("log-metrics-interval", "LEDWALL_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	envBool("mdns-enable", "LEDWALL_MDNS_ENABLE", &c.mdnsEnable)
	envStr("mdns-name", "LEDWALL_MDNS_NAME", &c.mdnsName)
	return firstErr
}
