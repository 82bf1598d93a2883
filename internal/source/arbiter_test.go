package source

import (
	"testing"
	"time"
)

func TestArbiter_FirstClaimWins(t *testing.T) {
	a := New()
	if !a.Claim("udp") {
		t.Fatalf("first claim refused")
	}
	if a.Claim("stream") {
		t.Fatalf("second source claimed an active display")
	}
	if got := a.Holder(); got != "udp" {
		t.Fatalf("holder = %q, want udp", got)
	}
}

func TestArbiter_HolderKeepsRenewing(t *testing.T) {
	now := time.Unix(0, 0)
	a := New(WithTakeover(time.Second), WithClock(func() time.Time { return now }))
	a.Claim("udp")
	for i := 0; i < 10; i++ {
		now = now.Add(900 * time.Millisecond)
		if !a.Claim("udp") {
			t.Fatalf("holder lost its own token at step %d", i)
		}
		if a.Claim("stream") {
			t.Fatalf("standby source stole an active token at step %d", i)
		}
	}
}

func TestArbiter_IdleHolderIsReplaced(t *testing.T) {
	now := time.Unix(0, 0)
	a := New(WithTakeover(time.Second), WithClock(func() time.Time { return now }))
	a.Claim("udp")
	now = now.Add(1500 * time.Millisecond)
	if !a.Claim("stream") {
		t.Fatalf("idle holder not replaced after takeover window")
	}
	if got := a.Holder(); got != "stream" {
		t.Fatalf("holder = %q, want stream", got)
	}
}

func TestArbiter_ReleaseFreesImmediately(t *testing.T) {
	a := New()
	a.Claim("udp")
	a.Release("udp")
	if !a.Claim("stream") {
		t.Fatalf("claim refused after release")
	}
	// Releasing under someone else's name is a no-op.
	a.Release("udp")
	if got := a.Holder(); got != "stream" {
		t.Fatalf("foreign release cleared the holder")
	}
}
