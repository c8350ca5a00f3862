// Package serial describes the byte-level duplex the rest of the
// driver is built on top of, and provides two concrete
// implementations of it.
package serial

// Port is the unbuffered byte duplex every higher layer is built on.
// It is implementation-agnostic: the state machine never type-asserts
// on a concrete Port, and tests drive it entirely through FakePort.
type Port interface {
	// WriteBytes writes buf verbatim and returns the number of bytes
	// written.
	WriteBytes(buf []byte) (int, error)

	// WriteLine appends "\r\n" to text and writes it.
	WriteLine(text string) error

	// Flush pushes any buffered output to the wire.
	Flush() error

	// ReadLineUntil returns the buffered bytes up to delim (exclusive),
	// or ("", nil) if no complete line has arrived yet. It does not
	// block and never returns a partial line; callers that need to wait
	// for a line use LineReader's ReadLineTimeout.
	ReadLineUntil(delim byte) (string, error)

	// Available reports how many bytes can be read without blocking.
	Available() int

	// ReadByte reads a single byte. ok is false if none is currently
	// available.
	ReadByte() (b byte, ok bool, err error)
}
