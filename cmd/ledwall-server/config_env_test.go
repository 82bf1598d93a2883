package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := validConfig()

	os.Setenv("LEDWALL_WIDTH", "128")
	os.Setenv("LEDWALL_UDP_LISTEN", ":6000")
	os.Setenv("LEDWALL_FRAME_MAX_AGE", "250ms")
	os.Setenv("LEDWALL_MDNS_ENABLE", "true")
	os.Setenv("LEDWALL_STREAM_FLIP", "off")
	t.Cleanup(func() {
		os.Unsetenv("LEDWALL_WIDTH")
		os.Unsetenv("LEDWALL_UDP_LISTEN")
		os.Unsetenv("LEDWALL_FRAME_MAX_AGE")
		os.Unsetenv("LEDWALL_MDNS_ENABLE")
		os.Unsetenv("LEDWALL_STREAM_FLIP")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.width != 128 {
		t.Fatalf("expected width override, got %d", base.width)
	}
	if base.udpListen != ":6000" {
		t.Fatalf("expected udpListen override, got %s", base.udpListen)
	}
	if base.frameMaxAge != 250*time.Millisecond {
		t.Fatalf("expected frameMaxAge 250ms got %v", base.frameMaxAge)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.streamFlip {
		t.Fatalf("expected streamFlip disabled")
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := validConfig()
	os.Setenv("LEDWALL_BAUD", "230400")
	t.Cleanup(func() { os.Unsetenv("LEDWALL_BAUD") })
	// Simulate user passed -baud flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"baud": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.baud != 115200 {
		t.Fatalf("expected baud unchanged 115200 got %d", base.baud)
	}
}

func TestApplyEnvOverrides_BadValues(t *testing.T) {
	base := validConfig()
	os.Setenv("LEDWALL_CHUNK_SIZE", "notint")
	t.Cleanup(func() { os.Unsetenv("LEDWALL_CHUNK_SIZE") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}

	base = validConfig()
	os.Setenv("LEDWALL_SOURCE_TAKEOVER", "forever")
	t.Cleanup(func() { os.Unsetenv("LEDWALL_SOURCE_TAKEOVER") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
