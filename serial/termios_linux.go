//go:build linux

package serial

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// TermiosPort is a Linux-only Port built directly on raw termios
// ioctls rather than a buffering third-party serial library, the way
// Daedaluz-goserial's Port.GetAttr/SetAttr drive tcgets/tcsets
// directly on the file descriptor. It exists because tarm/serial's
// Read blocks for an entire buffer fill, which makes the bounded-time
// line read of LineReader.ReadLineTimeout coarser than it needs to be;
// here VMIN=0/VTIME is left at 0, so a Read on the fd returns
// immediately with whatever bytes are currently available (possibly
// none), and availability is additionally cross-checked with
// unix.IoctlGetInt(TIOCINQ). ReadLineUntil therefore never blocks and
// never returns a partial line, the same Port contract RealPort and
// FakePort honor: bytes that arrive without a delimiter are held in
// buf rather than handed to a blocking bufio.Reader.ReadString, which
// would otherwise panic with io.ErrNoProgress on a slow trickle of
// bytes with no newline in sight.
type TermiosPort struct {
	f   *os.File
	fd  int
	buf bytes.Buffer
}

// OpenTermios opens device in raw 115200-8-N-1 mode.
func OpenTermios(device string) (*TermiosPort, error) {
	f, err := os.OpenFile(device, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", device)
	}
	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "TCGETS")
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	t.Ispeed = unix.B115200
	t.Ospeed = unix.B115200

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "TCSETS")
	}

	return &TermiosPort{f: f, fd: fd}, nil
}

func (t *TermiosPort) WriteBytes(buf []byte) (int, error) {
	return t.f.Write(buf)
}

func (t *TermiosPort) WriteLine(text string) error {
	_, err := t.f.Write([]byte(text + "\r\n"))
	return err
}

func (t *TermiosPort) Flush() error {
	return unix.IoctlTcflush(t.fd, unix.TCOFLUSH)
}

// fill performs one non-blocking Read of whatever the kernel currently
// holds (VMIN=0/VTIME=0 guarantees Read returns immediately rather
// than waiting to fill tmp) and appends it to buf.
func (t *TermiosPort) fill() {
	tmp := make([]byte, 4096)
	n, err := t.f.Read(tmp)
	if n > 0 {
		t.buf.Write(tmp[:n])
	}
	_ = err
}

// ReadLineUntil returns the buffered bytes up to and excluding the
// first delim, or ("", nil) if delim hasn't arrived yet — it never
// blocks and never returns a partial line.
func (t *TermiosPort) ReadLineUntil(delim byte) (string, error) {
	t.fill()
	idx := bytes.IndexByte(t.buf.Bytes(), delim)
	if idx < 0 {
		return "", nil
	}
	line := string(t.buf.Next(idx))
	t.buf.Next(1) // drop delim
	return line, nil
}

func (t *TermiosPort) Available() int {
	t.fill()
	n, err := unix.IoctlGetInt(t.fd, unix.TIOCINQ)
	if err != nil {
		return t.buf.Len()
	}
	return t.buf.Len() + n
}

func (t *TermiosPort) ReadByte() (byte, bool, error) {
	t.fill()
	if t.buf.Len() == 0 {
		return 0, false, nil
	}
	b, err := t.buf.ReadByte()
	if err != nil {
		return 0, false, err
	}
	return b, true, nil
}

func (t *TermiosPort) Close() error {
	return t.f.Close()
}
