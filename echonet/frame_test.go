package echonet

import (
	"encoding/hex"
	"reflect"
	"testing"
)

func TestParseFrame(t *testing.T) {
	decoded, _ := hex.DecodeString("1081000102880105FF017201E80400140064")
	frame, err := Parse(decoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frame.EPC) != 1 || frame.EPC[0] != InstantaneousCurrent {
		t.Errorf("EPC mismatch: %+v", frame.EPC)
	}
	expectedEDT := [][]byte{{0x00, 0x14, 0x00, 0x64}}
	if !reflect.DeepEqual(frame.EDT, expectedEDT) {
		t.Errorf("EDT mismatch: %+v != %+v", frame.EDT, expectedEDT)
	}
}

func TestBuildFrame(t *testing.T) {
	frame := NewFrame(SmartElectricMeter, Get, []PropertyCode{InstantaneousElectricPower}, [][]byte{{}})
	frame.TID = 0
	got := frame.Build()
	want, _ := hex.DecodeString("1081000005FF010288016201E700")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() = %s, want %s", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestCorrespondTo(t *testing.T) {
	req := NewGetRequest([]PropertyCode{InstantaneousCurrent})
	req.TID = 0xabcd

	res, _ := Parse(mustHex("1081ABCD02880105FF017201E80400140064"))
	if !req.CorrespondTo(res) {
		t.Errorf("expected request/response to correspond")
	}

	wrongTID, _ := Parse(mustHex("1081ABCE02880105FF017201E80400140064"))
	if req.CorrespondTo(wrongTID) {
		t.Errorf("expected mismatch on TID")
	}

	wrongESV, _ := Parse(mustHex("1081ABCD02880105FF017101E80400140064"))
	if req.CorrespondTo(wrongESV) {
		t.Errorf("expected mismatch on ESV delta")
	}

	wrongEPC, _ := Parse(mustHex("1081ABCD02880105FF017201E90400140064"))
	if req.CorrespondTo(wrongEPC) {
		t.Errorf("expected mismatch on EPC")
	}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
