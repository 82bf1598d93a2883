package main

import (
	"fmt"
	"log/slog"

	"github.com/jdhagood/go-ledwall-server/internal/driver"
)

const nullRefreshHz = 60

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = driver.OpenPort

// initDriver selects the display driver and returns it plus a cleanup
// function. It returns an error instead of exiting the process to allow
// graceful handling by the caller.
func initDriver(cfg *appConfig, l *slog.Logger) (driver.Driver, func(), error) {
	switch cfg.driver {
	case "null":
		d, err := driver.NewNull(cfg.width, cfg.height, nullRefreshHz)
		if err != nil {
			return nil, func() {}, fmt.Errorf("null driver: %w", err)
		}
		l.Info("driver_open", "driver", "null", "refresh_hz", nullRefreshHz)
		return d, func() { _ = d.Close() }, nil
	case "serial":
		port, err := openSerialPort(cfg.serialDev, cfg.baud)
		if err != nil {
			return nil, func() {}, fmt.Errorf("open serial: %w", err)
		}
		d, err := driver.NewSerial(port, cfg.width, cfg.height)
		if err != nil {
			_ = port.Close()
			return nil, func() {}, fmt.Errorf("serial driver: %w", err)
		}
		l.Info("driver_open", "driver", "serial", "device", cfg.serialDev, "baud", cfg.baud)
		return d, func() { _ = d.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown driver %q (use null|serial)", cfg.driver)
	}
}
