// Package line implements the text-line layer that sits directly on
// top of serial.Port: reading trimmed lines with a wall-clock bound,
// polling for a terminal response, and writing the fixed SK* command
// vocabulary.
package line

import (
	"strings"
	"time"

	"github.com/hnw/skstack-broute/serial"
)

// Reader consumes serial.Port output one line at a time. The unit of
// exchange above this layer is always one trimmed line, never a raw
// byte.
type Reader struct {
	port serial.Port
}

// NewReader wraps port.
func NewReader(port serial.Port) *Reader {
	return &Reader{port: port}
}

// ReadLineTimeout polls port for a complete line, trimmed of trailing
// CR/whitespace, up to timeout. It returns ok=false (no error) if
// nothing arrived in time; the caller's state-machine row is simply
// re-entered on the next tick in that case.
func (r *Reader) ReadLineTimeout(timeout, delay time.Duration) (line string, ok bool) {
	deadline := time.Now().Add(timeout)
	for {
		if r.port.Available() > 0 {
			raw, err := r.port.ReadLineUntil('\n')
			if err == nil && raw != "" {
				return strings.TrimRight(raw, "\r\n \t"), true
			}
		}
		if timeout > 0 && time.Now().After(deadline) {
			return "", false
		}
		time.Sleep(delay)
	}
}

// TryReadLine performs a single non-blocking check: if a complete
// line is currently available it is read and returned with ok=true;
// otherwise it returns immediately with ok=false. This is the
// primitive reading state-machine rows use — unlike ReadLineTimeout,
// it never sleeps, so a tick-driven caller's loop is never blocked
// waiting on the module.
func (r *Reader) TryReadLine() (line string, ok bool) {
	if r.port.Available() == 0 {
		return "", false
	}
	raw, err := r.port.ReadLineUntil('\n')
	if err != nil || raw == "" {
		return "", false
	}
	return strings.TrimRight(raw, "\r\n \t"), true
}

// Discard sleeps delay then drains whatever bytes are currently
// available with no parsing. Used after a FAIL ER… line to clear any
// trailing explanation bytes the module appends.
func (r *Reader) Discard(delay time.Duration) {
	time.Sleep(delay)
	for r.port.Available() > 0 {
		if _, ok, err := r.port.ReadByte(); err != nil || !ok {
			break
		}
	}
}
