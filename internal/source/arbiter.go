// Package source arbitrates which frame producer owns the display.
// The deployment model is one active producer at a time; rather than
// leaving that implicit, the transports race for an explicit token.
package source

import (
	"sync"
	"time"
)

// DefaultTakeover is how long the token holder may stay idle before
// another producer can claim the display.
const DefaultTakeover = 2 * time.Second

// Arbiter grants the display to the producer that most recently
// completed a frame. A different producer may take over only once the
// holder has been idle longer than the takeover window, so a paused
// sender keeps its last frame on the wall briefly instead of flickering
// between sources. Safe for concurrent use.
type Arbiter struct {
	mu       sync.Mutex
	holder   string
	lastSeen time.Time
	takeover time.Duration
	now      func() time.Time
}

type Option func(*Arbiter)

// WithTakeover sets the idle window after which the token may move.
func WithTakeover(d time.Duration) Option {
	return func(a *Arbiter) {
		if d > 0 {
			a.takeover = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(a *Arbiter) {
		if now != nil {
			a.now = now
		}
	}
}

func New(opts ...Option) *Arbiter {
	a := &Arbiter{takeover: DefaultTakeover, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Claim asks for the display on behalf of name, called once per
// completed frame. It returns true when name holds (or takes) the
// token; false means the frame should be dropped.
func (a *Arbiter) Claim(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	switch {
	case a.holder == "" || a.holder == name:
	case now.Sub(a.lastSeen) > a.takeover:
	default:
		return false
	}
	a.holder = name
	a.lastSeen = now
	return true
}

// Release gives the token up voluntarily (producer shutting down), so a
// standby source can take over without waiting out the idle window.
func (a *Arbiter) Release(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == name {
		a.holder = ""
	}
}

// Holder reports the current token holder ("" when unheld).
func (a *Arbiter) Holder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}
