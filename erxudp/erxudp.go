// Package erxudp splits a received "ERXUDP …" line into its nine
// whitespace-separated fields, grounded on
// original_source/ErxUdp.hpp's split().
package erxudp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Frame is a parsed ERXUDP line. A frame is Valid exactly when all
// nine fields were present; otherwise every field is its zero value.
type Frame struct {
	SenderIPv6 string
	DestIPv6   string
	SenderPort uint16
	DestPort   uint16
	SenderMAC  string
	Secured    byte // hex-8 flag as read, not reduced to bool: original carries it verbatim
	Length     uint16
	Payload    string // raw ASCII-hex or binary payload, per the negotiated WOPT mode
	Valid      bool
}

// Parse splits line ("ERXUDP" followed by eight fields) into a Frame. A
// frame is valid exactly when nine fields, the ERXUDP keyword included,
// are present (§3); the numeric
// subfields follow original_source/ErxUdp.hpp's use of strtol, which
// never fails and yields 0 for a non-numeric token rather than
// rejecting the line.
func Parse(line string) Frame {
	fields := strings.Fields(line)
	if len(fields) != 9 || fields[0] != "ERXUDP" {
		return Frame{}
	}
	return Frame{
		SenderIPv6: fields[1],
		DestIPv6:   fields[2],
		SenderPort: uint16(parseHexOrZero(fields[3], 16)),
		DestPort:   uint16(parseHexOrZero(fields[4], 16)),
		SenderMAC:  fields[5],
		Secured:    byte(parseHexOrZero(fields[6], 8)),
		Length:     uint16(parseHexOrZero(fields[7], 16)),
		Payload:    fields[8],
		Valid:      true,
	}
}

// parseHexOrZero parses s as a base-16 unsigned integer of bitSize,
// returning 0 instead of an error on a non-numeric token (strtol's
// behavior, which original_source/ErxUdp.hpp relies on).
func parseHexOrZero(s string, bitSize int) uint64 {
	n, err := strconv.ParseUint(s, 16, bitSize)
	if err != nil {
		return 0
	}
	return n
}

// String re-serializes the frame to its wire form (field order fixed,
// single-space separated). Round-tripping Parse(f.String()) yields an
// equal Frame up to whitespace normalisation, per the testable
// round-trip property.
func (f Frame) String() string {
	if !f.Valid {
		return ""
	}
	return fmt.Sprintf("ERXUDP %s %s %04X %04X %s %02X %04X %s",
		f.SenderIPv6, f.DestIPv6, f.SenderPort, f.DestPort,
		f.SenderMAC, f.Secured, f.Length, f.Payload)
}

// DecodePayload resolves f.Payload to its raw bytes. The module
// carries the payload as binary when WOPT is 0 (len(Payload) ==
// Length) or as ASCII-hex when WOPT is 1 (len(Payload) ==
// 2*Length); either is accepted on a per-frame basis rather than
// assuming a global mode, grounded on the teacher's
// readCorrespondingEchonetFrame length check.
func DecodePayload(f Frame) ([]byte, error) {
	if !f.Valid {
		return nil, errors.New("erxudp: invalid frame")
	}
	length := int(f.Length)
	switch len(f.Payload) {
	case length:
		return []byte(f.Payload), nil
	case length * 2:
		return hex.DecodeString(f.Payload)
	default:
		return nil, fmt.Errorf("erxudp: payload length mismatch (want %d or %d, got %d)", length, length*2, len(f.Payload))
	}
}
