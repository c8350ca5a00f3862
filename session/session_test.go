package session

import (
	"encoding/hex"
	"testing"

	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/serial"
)

const ownIPv6 = "FE80:0000:0000:0000:021D:1290:1234:5678"

// neighborIPv6 is a distinct address from ownIPv6, used to exercise
// the ERXUDP sender-vs-neighbor comparison without self.IPv6 and
// param.IPv6Address ever aliasing each other by accident.
const neighborIPv6 = "FE80:0000:0000:0000:021D:1290:ABCD:0001"

// buildGetResFrame builds a minimal valid GetRes-shaped ECHONET Lite
// frame as raw bytes, used to feed waitInitParamErxudp /
// waitErxudp a decodable payload without depending on property
// semantics (Non-goal, §1).
func buildGetResFrame() []byte {
	f := echonet.NewFrame(echonet.Controller, echonet.GetRes,
		[]echonet.PropertyCode{echonet.Coefficient, echonet.CumulativeEnergyUnit},
		[][]byte{{0x01}, {0x01}})
	f.SEOJ = echonet.SmartElectricMeter
	return f.Build()
}

func feedLines(fake *serial.FakePort, lines []string) {
	for _, l := range lines {
		fake.FeedLine(l)
	}
}

func happyPathLines() []string {
	payload := hex.EncodeToString(buildGetResFrame())
	return []string{
		"SKSREG SFE 0",
		"OK",
		"EINFO " + ownIPv6 + " 001D129012345678 21 8888 1234",
		"OK",
		"EVER 1.2.3",
		"OK",
		"OK",
		"OK",
		"OK 01",
		"OK",
		"EVENT 20 FE80:0000:0000:0000:021D:1290:1234:0001",
		"EPANDESC",
		"Channel:21",
		"Channel Page:09",
		"Pan ID:8888",
		"Addr:001D129012345678",
		"LQI:80",
		"PairID:12345678",
		"EVENT 22 FE80:0000:0000:0000:021D:1290:1234:0001",
		ownIPv6,
		"OK",
		"OK",
		"OK",
		"EVENT 25 FE80:0000:0000:0000:021D:1290:1234:0001",
		"OK",
		"EVENT 21 FE80:0000:0000:0000:021D:1290:1234:0001 00",
		"ERXUDP " + ownIPv6 + " " + ownIPv6 + " 0E1A 0E1A 001D129012345678 01 " + hex4len(len(payload)/2) + " " + payload,
	}
}

func hex4len(n int) string {
	s := "0000" + hexUpper(n)
	return s[len(s)-4:]
}

func hexUpper(n int) string {
	const digits = "0123456789ABCDEF"
	if n == 0 {
		return "0"
	}
	out := ""
	for n > 0 {
		out = string(digits[n%16]) + out
		n /= 16
	}
	return out
}

func newTestSession(t *testing.T) (*Session, *serial.FakePort) {
	t.Helper()
	fake := serial.NewFakePort()
	s := NewWithConfig("00112233445566778899AABBCCDDEEFF", "password1234", fake, DefaultConfig(), DefaultCodec,
		func(*echonet.Frame) error { return nil })
	return s, fake
}

func TestHappyPathJoin(t *testing.T) {
	s, fake := newTestSession(t)
	// The Uninitialized row discards whatever is buffered, so replies are
	// fed only after it has run.
	s.InitializeTick()
	feedLines(fake, happyPathLines())

	done := false
	for i := 0; i < 200 && !done; i++ {
		done = s.InitializeTick()
	}
	if !done {
		t.Fatalf("expected terminal state reached, got %s", s.GetInitState())
	}
	if s.GetInitState() != ReadySmartMeter {
		t.Fatalf("expected ReadySmartMeter, got %s", s.GetInitState())
	}
	p := s.Parameter()
	if p.Channel == "" || p.PanID == "" || p.MacAddress == "" || p.IPv6Address == "" {
		t.Errorf("expected populated CommunicationParameter, got %+v", p)
	}
}

func TestScanWithOneEmptyPass(t *testing.T) {
	s, fake := newTestSession(t)

	lines := []string{
		"SKSREG SFE 0", "OK",
		"EINFO " + ownIPv6 + " 001D129012345678 21 8888 1234", "OK",
		"EVER 1.2.3", "OK",
		"OK",
		"OK",
		"OK 01",
		"OK", // waitActiveScanWithIEOk, first pass
		"EVENT 22 FE80:0000:0000:0000:021D:1290:1234:0001", // ScanDone, no beacon: empty pass
		"OK", // waitActiveScanWithIEOk, second pass
	}
	s.InitializeTick() // Uninitialized: discards the buffer before these replies arrive
	feedLines(fake, lines)

	for i := 0; i < 60; i++ {
		s.InitializeTick()
	}

	if s.init.scanDuration != 4 {
		t.Errorf("expected scan duration to escalate to 4, got %d", s.init.scanDuration)
	}
}

func TestPanaFailureOnceRetriesWithoutRescan(t *testing.T) {
	s, _ := newTestSession(t)
	s.init.state = WaitPana
	s.init.param.Channel = "21"
	s.init.param.PanID = "8888"
	s.init.param.DestIPv6 = ownIPv6

	next := s.init.handleReading(WaitPana, "EVENT 24 "+ownIPv6)
	if next != ConvertAddr {
		t.Fatalf("expected PanaFail to retry via ConvertAddr, got %s", next)
	}

	s.init.state = WaitPana
	next = s.init.handleReading(WaitPana, "EVENT 25 "+ownIPv6)
	if next != ReadyCommunication {
		t.Fatalf("expected PanaOk to advance to ReadyCommunication, got %s", next)
	}
}

func TestWoptAlreadySetSkipsWriteOpt(t *testing.T) {
	s, _ := newTestSession(t)
	next := s.init.handleReading(WaitReadOpt, "OK 01")
	if next != ActiveScanWithIE {
		t.Fatalf("expected OK 01 to skip straight to ActiveScanWithIE, got %s", next)
	}
}

func TestWoptNotSetGoesThroughWriteOpt(t *testing.T) {
	s, _ := newTestSession(t)
	next := s.init.handleReading(WaitReadOpt, "OK 00")
	if next != WriteOpt {
		t.Fatalf("expected OK 00 to route through WriteOpt, got %s", next)
	}
}

func TestMalformedEpanDescKeyAbortsScan(t *testing.T) {
	s, _ := newTestSession(t)
	s.init.state = WaitEpanDesc
	s.init.receivedBeacon = true
	s.init.epanDesc.Reset()

	next := s.init.handleReading(WaitEpanDescChannel, "Channel:21")
	if next != WaitEpanDescChannelPage {
		t.Fatalf("expected Channel to advance, got %s", next)
	}
	// Malformed: "PanID:" instead of "Pan ID:"
	s.init.handleReading(WaitEpanDescChannelPage, "Channel Page:09")
	next = s.init.handleReading(WaitEpanDescPanId, "PanID:8888")
	if next != ActiveScanWithIE {
		t.Fatalf("expected malformed key to abort to ActiveScanWithIE, got %s", next)
	}
	if s.init.param.PanID != "" {
		t.Errorf("expected PanID untouched, got %q", s.init.param.PanID)
	}
	if s.init.receivedBeacon {
		t.Errorf("expected receivedBeacon reset on abort")
	}
}

func TestSendPropertyRequestThenErxudpInvokesCallback(t *testing.T) {
	s, fake := newTestSession(t)
	s.self.IPv6 = ownIPv6
	s.param.IPv6Address = ownIPv6

	s.SendPropertyRequest([]echonet.PropertyCode{echonet.InstantaneousElectricPower})
	if s.GetCommState() != WaitSuccessUdpSend {
		t.Fatalf("expected WaitSuccessUdpSend after send, got %s", s.GetCommState())
	}
	found := false
	for _, cmd := range fake.WrittenCommands() {
		if len(cmd) >= 8 && cmd[:8] == "SKSENDTO" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SKSENDTO to have been written, got %v", fake.WrittenCommands())
	}

	payload := hex.EncodeToString(buildGetResFrame())
	feedLines(fake, []string{
		"OK",
		"EVENT 21 " + ownIPv6 + " 00",
		"ERXUDP " + ownIPv6 + " " + ownIPv6 + " 0E1A 0E1A 001D129012345678 01 " + hex4len(len(payload)/2) + " " + payload,
	})

	calls := 0
	var got *echonet.Frame
	cb := func(f *echonet.Frame) { calls++; got = f }

	done := false
	for i := 0; i < 50 && !done; i++ {
		done = s.CommunicationTick(cb)
	}
	if !done {
		t.Fatalf("expected comm machine back to Ready")
	}
	if s.GetCommState() != Ready {
		t.Fatalf("expected Ready, got %s", s.GetCommState())
	}
	if calls != 1 {
		t.Fatalf("expected callback invoked exactly once, got %d", calls)
	}
	if got == nil || got.ESV != echonet.GetRes {
		t.Errorf("expected decoded GetRes frame, got %+v", got)
	}
}

// TestErxudpMatchesNeighborAddressNotSelf exercises the comm machine
// with self.IPv6, param.IPv6Address, and the ERXUDP line's sender/dest
// fields all distinct, the way a real deployment looks: the meter
// (param.IPv6Address) sends to the host's own SKINFO address
// (self.IPv6). Only a frame whose SenderIPv6 matches the negotiated
// neighbor address — not one whose DestIPv6 happens to match
// self.IPv6 — may complete the wait (original_source/BP35A1.cpp's
// getUdpData() terminator is built from CommunicationParameter's
// address, never SelfInfo's).
func TestErxudpMatchesNeighborAddressNotSelf(t *testing.T) {
	s, fake := newTestSession(t)
	s.self.IPv6 = ownIPv6
	s.param.IPv6Address = neighborIPv6

	s.SendPropertyRequest([]echonet.PropertyCode{echonet.InstantaneousElectricPower})

	payload := hex.EncodeToString(buildGetResFrame())
	feedLines(fake, []string{
		"OK",
		"EVENT 21 " + ownIPv6 + " 00",
		// Sender is self.IPv6, dest is neighborIPv6 — the inverse of a
		// real meter reply. This must NOT be accepted.
		"ERXUDP " + ownIPv6 + " " + neighborIPv6 + " 0E1A 0E1A 001D129012345678 01 " + hex4len(len(payload)/2) + " " + payload,
	})

	calls := 0
	cb := func(*echonet.Frame) { calls++ }
	for i := 0; i < 20; i++ {
		s.CommunicationTick(cb)
	}
	if calls != 0 {
		t.Fatalf("expected spoofed-direction ERXUDP to be ignored, got %d callback(s)", calls)
	}
	if s.GetCommState() != WaitErxudp {
		t.Fatalf("expected to still be waiting in WaitErxudp, got %s", s.GetCommState())
	}

	// Now feed the real-shaped line: sender is the neighbor, dest is
	// the host's own address.
	feedLines(fake, []string{
		"ERXUDP " + neighborIPv6 + " " + ownIPv6 + " 0E1A 0E1A 001D129012345678 01 " + hex4len(len(payload)/2) + " " + payload,
	})
	done := false
	for i := 0; i < 20 && !done; i++ {
		done = s.CommunicationTick(cb)
	}
	if !done || s.GetCommState() != Ready {
		t.Fatalf("expected comm machine to complete on neighbor-sourced ERXUDP, got state %s", s.GetCommState())
	}
	if calls != 1 {
		t.Fatalf("expected callback invoked exactly once, got %d", calls)
	}
}

func TestActiveScanWithIEEmitsMode2(t *testing.T) {
	// original_source/BP35A1.hpp: "enum class ScanMode { EDScan,
	// ActiveScanWithIE = 2, ActiveScanWithoutIE }" — the default
	// DefaultScanConfig mode (ActiveWithIE) must write mode "2", not
	// the ActiveWithoutIE value.
	s, fake := newTestSession(t)
	s.init.state = ActiveScanWithIE
	s.InitializeTick()

	cmd := fake.LastCommand()
	want := "SKSCAN 2 FFFFFFFF 3"
	if cmd != want {
		t.Fatalf("expected %q, got %q", want, cmd)
	}
}

func TestResetInitStateClearsStaticFlags(t *testing.T) {
	s, fake := newTestSession(t)
	s.InitializeTick() // consumes Uninitialized -> WaitDisableEcho
	feedLines(fake, []string{"SKSREG SFE 0"})
	s.InitializeTick() // consumes "SKSREG SFE 0", sets echoSeen
	if !s.init.echoSeen {
		t.Fatalf("expected echoSeen set before reset")
	}
	s.ResetInitState()
	if s.GetInitState() != Uninitialized {
		t.Fatalf("expected Uninitialized after reset, got %s", s.GetInitState())
	}
	if s.init.echoSeen || s.init.okSeen {
		t.Errorf("expected static flags cleared after reset")
	}
}
