package event

import "testing"

func TestParseBeaconWithNoParameter(t *testing.T) {
	ev, ok := Parse("EVENT 20 FE80:0000:0000:0000:021D:1290:1234:5678")
	if !ok {
		t.Fatalf("expected ok")
	}
	if ev.Type != Beacon {
		t.Errorf("type = %02X, want %02X", ev.Type, Beacon)
	}
	if ev.HasParam {
		t.Errorf("expected no parameter")
	}
}

func TestParseUdpSentWithParameter(t *testing.T) {
	ev, ok := Parse("EVENT 21 FE80:0000:0000:0000:021D:1290:1234:5678 00")
	if !ok {
		t.Fatalf("expected ok")
	}
	p, ok := ev.UdpSentParam()
	if !ok || p != UdpSentSuccess {
		t.Errorf("parameter = %v, ok=%v", p, ok)
	}
}

func TestParseRejectsNonEvent(t *testing.T) {
	if _, ok := Parse("OK"); ok {
		t.Errorf("expected not ok for non-EVENT line")
	}
}

func TestStringRoundTrip(t *testing.T) {
	line := "EVENT 21 FE80:0000:0000:0000:021D:1290:1234:5678 00"
	ev, ok := Parse(line)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got := ev.String(); got != line {
		t.Errorf("round trip mismatch:\n got: %s\nwant: %s", got, line)
	}
}
