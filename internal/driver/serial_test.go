package driver

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

type fakePort struct {
	mu     sync.Mutex
	wrote  bytes.Buffer
	delay  time.Duration
	closed bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrote.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.wrote.Bytes()...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestSerial_WritesHeaderAndPayload(t *testing.T) {
	port := &fakePort{}
	d, err := NewSerial(port, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	c, err := d.CreateCanvas()
	if err != nil {
		t.Fatal(err)
	}
	c.SetPixel(0, 0, 10, 20, 30)
	if _, err := d.SwapOnVSync(c); err != nil {
		t.Fatal(err)
	}

	want := 2 * 2 * 3
	waitFor(t, func() bool { return len(port.bytes()) == serialHeaderSize+want })
	got := port.bytes()
	if !bytes.Equal(got[:4], serialMagic[:]) {
		t.Fatalf("magic = % X", got[:4])
	}
	if got[4] != 0 || got[5] != 2 || got[6] != 0 || got[7] != 2 {
		t.Fatalf("dimensions in header wrong: % X", got[4:8])
	}
	if got[8] != 10 || got[9] != 20 || got[10] != 30 {
		t.Fatalf("first pixel wrong: % X", got[8:11])
	}
}

func TestSerial_ReturnedCanvasNeverAliases(t *testing.T) {
	port := &fakePort{}
	d, err := NewSerial(port, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	c, _ := d.CreateCanvas()
	next, err := d.SwapOnVSync(c)
	if err != nil {
		t.Fatal(err)
	}
	if next == c {
		t.Fatalf("SwapOnVSync returned the queued canvas")
	}
}

func TestSerial_SlowLinkDropsInsteadOfBlocking(t *testing.T) {
	port := &fakePort{delay: 50 * time.Millisecond}
	d, err := NewSerial(port, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	c, _ := d.CreateCanvas()
	start := time.Now()
	for i := 0; i < 20; i++ {
		c2, err := d.SwapOnVSync(c)
		if err != nil {
			t.Fatal(err)
		}
		c = c2
	}
	// 20 frames over a 50ms-per-write link would take a second if each
	// swap blocked; drops must keep the producer fast.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("swaps blocked on the slow link: %v", elapsed)
	}
}

func TestSerial_CloseIsIdempotent(t *testing.T) {
	port := &fakePort{}
	d, err := NewSerial(port, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.closed {
		t.Fatalf("port not closed")
	}
	if _, err := d.SwapOnVSync(mustCanvas(t, d)); err == nil {
		t.Fatalf("swap after close should fail")
	}
}

func mustCanvas(t *testing.T, d Driver) Canvas {
	t.Helper()
	c, err := d.CreateCanvas()
	if err != nil {
		t.Fatal(err)
	}
	return c
}
