package serial

import (
	"strings"
	"sync"
)

// FakePort is a scripted fake serial used to drive the state-machine
// scenarios of the testable-properties list: callers queue lines (and
// raw byte chunks, for ERXUDP binary-payload tests) with Feed/FeedLine,
// and read back what the driver wrote with WrittenCommands/LastCommand.
type FakePort struct {
	mu      sync.Mutex
	inbuf   []byte
	written [][]byte
}

// NewFakePort returns an empty fake port ready to be fed.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// FeedLine appends text followed by "\r\n" to the inbound buffer.
func (f *FakePort) FeedLine(text string) {
	f.Feed([]byte(text + "\r\n"))
}

// Feed appends raw bytes to the inbound buffer.
func (f *FakePort) Feed(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbuf = append(f.inbuf, b...)
}

func (f *FakePort) WriteBytes(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), buf...)
	f.written = append(f.written, cp)
	return len(buf), nil
}

func (f *FakePort) WriteLine(text string) error {
	_, err := f.WriteBytes([]byte(text + "\r\n"))
	return err
}

func (f *FakePort) Flush() error { return nil }

func (f *FakePort) ReadLineUntil(delim byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := -1
	for i, b := range f.inbuf {
		if b == delim {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", nil
	}
	line := string(f.inbuf[:idx])
	f.inbuf = f.inbuf[idx+1:]
	return line, nil
}

func (f *FakePort) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inbuf)
}

func (f *FakePort) ReadByte() (byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbuf) == 0 {
		return 0, false, nil
	}
	b := f.inbuf[0]
	f.inbuf = f.inbuf[1:]
	return b, true, nil
}

// WrittenCommands returns every line written so far, CRLF stripped,
// in order.
func (f *FakePort) WrittenCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.written))
	for _, w := range f.written {
		out = append(out, strings.TrimRight(string(w), "\r\n"))
	}
	return out
}

// LastCommand returns the most recently written line, or "".
func (f *FakePort) LastCommand() string {
	cmds := f.WrittenCommands()
	if len(cmds) == 0 {
		return ""
	}
	return cmds[len(cmds)-1]
}
