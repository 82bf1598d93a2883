package main

import (
	"testing"
	"time"
)

func validConfig() *appConfig {
	return &appConfig{
		width:        256,
		height:       192,
		udpListen:    ":5005",
		tcpListen:    "127.0.0.1:9999",
		chunkCap:     1024,
		frameMaxAge:  100 * time.Millisecond,
		takeover:     2 * time.Second,
		streamReadTO: 60 * time.Second,
		streamFlip:   true,
		driver:       "null",
		serialDev:    "/dev/null",
		baud:         115200,
		pattern:      "off",
		patternFPS:   30,
		logFormat:    "text",
		logLevel:     "info",
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badWidth", func(c *appConfig) { c.width = 0 }},
		{"badHeight", func(c *appConfig) { c.height = -1 }},
		{"badChunk", func(c *appConfig) { c.chunkCap = 0 }},
		{"hugeChunk", func(c *appConfig) { c.chunkCap = 70000 }},
		{"badMaxAge", func(c *appConfig) { c.frameMaxAge = 0 }},
		{"badTakeover", func(c *appConfig) { c.takeover = 0 }},
		{"negReadTO", func(c *appConfig) { c.streamReadTO = -time.Second }},
		{"badDriver", func(c *appConfig) { c.driver = "hdmi" }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
		{"badPattern", func(c *appConfig) { c.pattern = "lava" }},
		{"badFPS", func(c *appConfig) { c.patternFPS = 0 }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
	}
	for _, tc := range tests {
		base := validConfig()
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
