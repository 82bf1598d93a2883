package driver

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/jdhagood/go-ledwall-server/internal/logging"
	"github.com/jdhagood/go-ledwall-server/internal/metrics"
)

// Serial link wire format, one record per presented frame:
//
//	magic   4 bytes  "LWF1"
//	width   u16 BE
//	height  u16 BE
//	payload width*height*3 RGB bytes
var serialMagic = [4]byte{'L', 'W', 'F', '1'}

const serialHeaderSize = 8

// Port abstracts tarm/serial for testability.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// OpenPort opens the underlying serial device.
func OpenPort(name string, baud int) (Port, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// Serial streams presented frames to an external panel controller over
// a serial link. Writes are funneled through a single goroutine with
// non-blocking hand-off: when the link cannot keep up the frame is
// dropped and the controller keeps showing its last frame, which is
// exactly the display's loss semantics elsewhere in the pipeline.
type Serial struct {
	width  int
	height int
	port   Port

	mu     sync.Mutex
	queue  chan *frameCanvas
	free   chan *frameCanvas
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewSerial creates the driver over an already open port.
func NewSerial(port Port, width, height int) (*Serial, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("driver: invalid display size %dx%d", width, height)
	}
	d := &Serial{
		width:  width,
		height: height,
		port:   port,
		queue:  make(chan *frameCanvas, 1),
		free:   make(chan *frameCanvas, 2),
		done:   make(chan struct{}),
	}
	// Spare canvases cycled back to callers by SwapOnVSync.
	for i := 0; i < 2; i++ {
		fc, err := newFrameCanvas(width, height)
		if err != nil {
			return nil, err
		}
		d.free <- fc
	}
	d.wg.Add(1)
	go d.txLoop()
	return d, nil
}

func (d *Serial) CreateCanvas() (Canvas, error) {
	return newFrameCanvas(d.width, d.height)
}

// SwapOnVSync queues c for transmission and returns a recycled canvas.
// If the writer is still busy with the previous frame, c is dropped.
func (d *Serial) SwapOnVSync(c Canvas) (Canvas, error) {
	fc, ok := c.(*frameCanvas)
	if !ok {
		return nil, fmt.Errorf("driver: foreign canvas %T", c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return c, fmt.Errorf("driver: serial link closed")
	}
	select {
	case d.queue <- fc:
		return <-d.free, nil
	default:
		metrics.IncDriverDrop()
		return c, nil
	}
}

func (d *Serial) txLoop() {
	defer d.wg.Done()
	hdr := make([]byte, serialHeaderSize)
	copy(hdr, serialMagic[:])
	binary.BigEndian.PutUint16(hdr[4:6], uint16(d.width))
	binary.BigEndian.PutUint16(hdr[6:8], uint16(d.height))
	for {
		select {
		case fc := <-d.queue:
			if _, err := d.port.Write(hdr); err != nil {
				metrics.IncError(metrics.ErrDriverWrite)
				logging.L().Error("serial_link_write_error", "error", err)
			} else if _, err := d.port.Write(fc.Buffer().Pix()); err != nil {
				metrics.IncError(metrics.ErrDriverWrite)
				logging.L().Error("serial_link_write_error", "error", err)
			} else {
				metrics.IncDriverTx()
			}
			d.free <- fc
		case <-d.done:
			return
		}
	}
}

// Clear sends one black frame so the wall blanks on shutdown.
func (d *Serial) Clear() {
	c, err := d.CreateCanvas()
	if err != nil {
		return
	}
	_, _ = d.SwapOnVSync(c)
	// Give the writer a moment to drain before the port closes.
	time.Sleep(50 * time.Millisecond)
}

func (d *Serial) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	close(d.done)
	d.wg.Wait()
	return d.port.Close()
}
