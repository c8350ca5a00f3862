package serial

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// RealPort adapts github.com/tarm/serial to Port, the way the teacher
// plugin opened its port directly in FetchMetrics — wrapped here so the
// rest of the driver never imports tarm/serial itself.
//
// tarm/serial exposes no way to ask the OS how many bytes are
// currently pending (no Fd(), no non-blocking peek), and its Read
// blocks for an entire requested-size fill. Available() therefore
// can't be answered by inspecting the library's own state the way
// TermiosPort asks the kernel via TIOCINQ. Instead a single
// background goroutine reads one byte at a time off the port into a
// mutex-guarded buffer, the same continuous-read-loop-into-a-buffer
// shape other_examples' librescoot-bluetooth-service usock.go uses
// for this identical tarm/serial limitation; Available/ReadByte/
// ReadLineUntil all read from that buffer instead of from the port
// directly.
type RealPort struct {
	port *serial.Port

	mu     sync.Mutex
	buf    bytes.Buffer
	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens device at baud 115200/8/N/1, the Wi-SUN module's fixed
// framing.
func Open(device string) (*RealPort, error) {
	cfg := &serial.Config{
		Name:     device,
		Baud:     115200,
		Size:     8,
		StopBits: 1,
	}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", device)
	}
	r := &RealPort{port: p, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go r.readLoop()
	return r, nil
}

// readLoop continuously pulls single bytes off the port into buf so
// Available() can report real pending-byte counts instead of a
// bufio.Reader's already-consumed-into-memory count.
func (r *RealPort) readLoop() {
	defer close(r.doneCh)
	b := make([]byte, 1)
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}
		n, err := r.port.Read(b)
		if err != nil {
			return
		}
		if n > 0 {
			r.mu.Lock()
			r.buf.WriteByte(b[0])
			r.mu.Unlock()
		}
	}
}

func (r *RealPort) WriteBytes(buf []byte) (int, error) {
	return r.port.Write(buf)
}

func (r *RealPort) WriteLine(text string) error {
	_, err := r.port.Write([]byte(text + "\r\n"))
	return err
}

func (r *RealPort) Flush() error {
	return r.port.Flush()
}

// ReadLineUntil returns the buffered bytes up to and excluding the
// first delim, or ("", nil) if delim hasn't arrived yet — it never
// blocks and never returns a partial line, matching FakePort's
// contract so callers gated on Available() > 0 see the same
// no-full-line-yet behavior against real hardware as they do in tests.
func (r *RealPort) ReadLineUntil(delim byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := bytes.IndexByte(r.buf.Bytes(), delim)
	if idx < 0 {
		return "", nil
	}
	line := string(r.buf.Next(idx))
	r.buf.Next(1) // drop delim
	return line, nil
}

func (r *RealPort) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

func (r *RealPort) ReadByte() (byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() == 0 {
		return 0, false, nil
	}
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, false, err
	}
	return b, true, nil
}

func (r *RealPort) Close() error {
	close(r.stopCh)
	err := r.port.Close()
	<-r.doneCh
	return err
}
