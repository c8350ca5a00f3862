// Package echonet is the opaque ECHONET Lite codec the state machine
// treats as an external collaborator: it frames and parses payloads,
// never interpreting property semantics beyond what the driver needs
// to request smart-meter coefficients and correlate a response to its
// request (§1 Non-goals: "parsing ECHONET payload semantics beyond
// framing"). Adapted from the teacher plugin's echoframe.go.
package echonet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
)

type ClassCode uint32
type ServiceCode byte
type PropertyCode byte

const headerEchonetLite = 0x1081

const (
	Controller         ClassCode = 0x05ff01
	SmartElectricMeter ClassCode = 0x028801
)

const (
	Get       ServiceCode = 0x62
	GetRes    ServiceCode = 0x72
	SetGetRes ServiceCode = 0x7E
)

const (
	Coefficient                PropertyCode = 0xd3
	CumulativeEnergyUnit       PropertyCode = 0xe1
	PositiveCumulativeEnergy   PropertyCode = 0xe0
	NegativeCumulativeEnergy   PropertyCode = 0xe3
	InstantaneousElectricPower PropertyCode = 0xe7
	InstantaneousCurrent       PropertyCode = 0xe8
)

// Frame is an ECHONET Lite frame: header, transaction ID, source and
// destination objects, a service code, and a list of
// property/value pairs.
type Frame struct {
	TID  uint16
	SEOJ ClassCode
	DEOJ ClassCode
	ESV  ServiceCode
	EPC  []PropertyCode
	EDT  [][]byte
}

// NewFrame constructs a request Frame addressed to dst with the given
// service and property list. A nil edt sends a GET-style frame where
// every property carries a zero-length EDT.
func NewFrame(dst ClassCode, esv ServiceCode, epc []PropertyCode, edt [][]byte) *Frame {
	f := &Frame{SEOJ: Controller, DEOJ: dst, ESV: esv}
	f.RegenerateTID()
	opc := len(epc)
	if edt != nil && opc > len(edt) {
		opc = len(edt)
	}
	f.EPC = make([]PropertyCode, opc)
	f.EDT = make([][]byte, opc)
	for i := 0; i < opc; i++ {
		f.EPC[i] = epc[i]
		if edt != nil {
			f.EDT[i] = edt[i]
		}
	}
	return f
}

// NewGetRequest builds a GET frame for properties against the
// low-voltage smart electricity meter object, the only request shape
// the state machine itself ever issues (§4.3 readyCommunication,
// §4.5 sendPropertyRequest).
func NewGetRequest(properties []PropertyCode) *Frame {
	return NewFrame(SmartElectricMeter, Get, properties, nil)
}

// Parse decodes raw bytes into a Frame. Non-goal: it does not
// interpret EDT contents beyond copying them out verbatim; callers
// needing e.g. instantaneous power as an integer do that decoding
// themselves.
func Parse(raw []byte) (*Frame, error) {
	f := new(Frame)
	if len(raw) < 12 {
		return nil, errors.New("echonet: frame too short")
	}
	if binary.BigEndian.Uint16(raw[0:2]) != headerEchonetLite {
		return nil, fmt.Errorf("echonet: unknown header %02X%02X", raw[0], raw[1])
	}
	f.TID = binary.BigEndian.Uint16(raw[2:4])
	f.SEOJ = ClassCode(binary.BigEndian.Uint32(raw[3:7]) & 0x00ffffff)
	f.DEOJ = ClassCode(binary.BigEndian.Uint32(raw[6:10]) & 0x00ffffff)
	f.ESV = ServiceCode(raw[10])
	opc := int(raw[11])

	f.EPC = make([]PropertyCode, opc)
	f.EDT = make([][]byte, opc)
	i := 12
	for j := 0; j < opc; j++ {
		if len(raw) < i+2 {
			return nil, errors.New("echonet: truncated property list")
		}
		f.EPC[j] = PropertyCode(raw[i])
		pdc := int(raw[i+1])
		if len(raw) < i+2+pdc {
			return nil, errors.New("echonet: truncated property data")
		}
		f.EDT[j] = append([]byte(nil), raw[i+2:i+2+pdc]...)
		i += 2 + pdc
	}
	return f, nil
}

// Build serializes f to wire bytes.
func (f *Frame) Build() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(headerEchonetLite))
	binary.Write(buf, binary.BigEndian, f.TID)
	binary.Write(buf, binary.BigEndian, uint8(f.SEOJ>>16&0xff))
	binary.Write(buf, binary.BigEndian, uint16(f.SEOJ&0xffff))
	binary.Write(buf, binary.BigEndian, uint8(f.DEOJ>>16&0xff))
	binary.Write(buf, binary.BigEndian, uint16(f.DEOJ&0xffff))
	binary.Write(buf, binary.BigEndian, f.ESV)
	binary.Write(buf, binary.BigEndian, uint8(len(f.EPC)))
	for i := range f.EPC {
		binary.Write(buf, binary.BigEndian, f.EPC[i])
		binary.Write(buf, binary.BigEndian, uint8(len(f.EDT[i])))
		buf.Write(f.EDT[i])
	}
	return buf.Bytes()
}

// CorrespondTo reports whether f is the response counterpart of
// target: matching TID, swapped SEOJ/DEOJ, a GET/GETRES-style ESV
// delta, and an equal, non-empty property list.
func (f *Frame) CorrespondTo(target *Frame) bool {
	if f.TID != target.TID {
		return false
	}
	if f.SEOJ != target.DEOJ || f.DEOJ != target.SEOJ {
		return false
	}
	delta := int(f.ESV) - int(target.ESV)
	if delta != -0x10 && delta != 0x10 {
		return false
	}
	if len(f.EPC) == 0 || len(f.EPC) != len(target.EPC) {
		return false
	}
	for i := range f.EPC {
		if f.EPC[i] != target.EPC[i] {
			return false
		}
	}
	return true
}

// RegenerateTID assigns a new random transaction ID. NewFrame calls it
// for every new frame.
func (f *Frame) RegenerateTID() {
	f.TID = uint16(rand.Int31n(0x10000))
}
