package erxudp

import "testing"

func TestParseValidFrame(t *testing.T) {
	line := "ERXUDP FE80:0000:0000:0000:021D:1290:1234:5678 FE80:0000:0000:0000:021D:1290:0000:0001 0E1A 0E1A 001D129012345678 01 0012 1081000102880105FF017201E70400000064"
	f := Parse(line)
	if !f.Valid {
		t.Fatalf("expected valid frame")
	}
	if f.SenderPort != 0x0E1A || f.DestPort != 0x0E1A {
		t.Errorf("port mismatch: %04X/%04X", f.SenderPort, f.DestPort)
	}
	if f.Secured != 0x01 {
		t.Errorf("secured mismatch: %02X", f.Secured)
	}
	if f.Length != 0x12 {
		t.Errorf("length mismatch: %04X", f.Length)
	}
}

func TestParseMissingFields(t *testing.T) {
	f := Parse("ERXUDP FE80::1 FE80::2 0E1A")
	if f.Valid {
		t.Fatalf("expected invalid frame for short line")
	}
	if f != (Frame{}) {
		t.Errorf("expected zero-value Frame, got %+v", f)
	}
}

func TestDecodePayloadHex(t *testing.T) {
	line := "ERXUDP FE80:0000:0000:0000:021D:1290:1234:5678 FE80:0000:0000:0000:021D:1290:0000:0001 0E1A 0E1A 001D129012345678 01 0012 1081000102880105FF017201E70400000064"
	f := Parse(line)
	raw, err := DecodePayload(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 0x12 {
		t.Errorf("decoded length = %d, want %d", len(raw), 0x12)
	}
}

func TestDecodePayloadBinary(t *testing.T) {
	f := Frame{Valid: true, Length: 4, Payload: "\x10\x81\x00\x01"}
	raw, err := DecodePayload(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "\x10\x81\x00\x01" {
		t.Errorf("unexpected decoded payload: %x", raw)
	}
}

func TestDecodePayloadLengthMismatch(t *testing.T) {
	f := Frame{Valid: true, Length: 99, Payload: "abcd"}
	if _, err := DecodePayload(f); err == nil {
		t.Errorf("expected error for mismatched length")
	}
}

func TestParseNonNumericSubfieldStaysValid(t *testing.T) {
	// §3: a frame is valid exactly when nine fields are present;
	// original_source/ErxUdp.hpp's strtol never fails, so a garbled
	// numeric token becomes 0 rather than invalidating the frame.
	line := "ERXUDP FE80::1 FE80::2 ZZZZ 0E1A 001D129012345678 01 0004 1234"
	f := Parse(line)
	if !f.Valid {
		t.Fatalf("expected valid frame despite non-numeric senderPort")
	}
	if f.SenderPort != 0 {
		t.Errorf("expected senderPort 0 for non-numeric token, got %04X", f.SenderPort)
	}
	if f.DestPort != 0x0E1A {
		t.Errorf("destPort mismatch: %04X", f.DestPort)
	}
}

func TestRoundTrip(t *testing.T) {
	line := "ERXUDP FE80:0000:0000:0000:021D:1290:1234:5678 FE80:0000:0000:0000:021D:1290:0000:0001 0E1A 0E1A 001D129012345678 00 0004 1234"
	f := Parse(line)
	if !f.Valid {
		t.Fatalf("expected valid frame")
	}
	if f.String() != line {
		t.Errorf("round trip mismatch:\n got: %s\nwant: %s", f.String(), line)
	}
}
