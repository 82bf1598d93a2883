package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/jdhagood/go-ledwall-server/internal/driver"
)

type nopPort struct{ closed bool }

func (p *nopPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *nopPort) Close() error                { p.closed = true; return nil }

func TestInitDriver_Null(t *testing.T) {
	cfg := validConfig()
	d, cleanup, err := initDriver(cfg, slog.Default())
	if err != nil {
		t.Fatalf("initDriver: %v", err)
	}
	defer cleanup()
	if _, ok := d.(*driver.Null); !ok {
		t.Fatalf("expected null driver, got %T", d)
	}
}

func TestInitDriver_SerialOpenError(t *testing.T) {
	orig := openSerialPort
	openSerialPort = func(string, int) (driver.Port, error) {
		return nil, errors.New("no such device")
	}
	t.Cleanup(func() { openSerialPort = orig })

	cfg := validConfig()
	cfg.driver = "serial"
	if _, _, err := initDriver(cfg, slog.Default()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestInitDriver_Serial(t *testing.T) {
	port := &nopPort{}
	orig := openSerialPort
	openSerialPort = func(string, int) (driver.Port, error) { return port, nil }
	t.Cleanup(func() { openSerialPort = orig })

	cfg := validConfig()
	cfg.driver = "serial"
	d, cleanup, err := initDriver(cfg, slog.Default())
	if err != nil {
		t.Fatalf("initDriver: %v", err)
	}
	if _, ok := d.(*driver.Serial); !ok {
		t.Fatalf("expected serial driver, got %T", d)
	}
	cleanup()
	if !port.closed {
		t.Error("cleanup did not close the port")
	}
}

func TestInitDriver_Unknown(t *testing.T) {
	cfg := validConfig()
	cfg.driver = "hdmi"
	if _, _, err := initDriver(cfg, slog.Default()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
