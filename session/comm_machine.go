package session

import (
	"strings"

	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/erxudp"
	"github.com/hnw/skstack-broute/line"
	"github.com/hnw/skstack-broute/scan"
)

// commMachine is the request/response coupling layer of §4.5: two
// active rows (waitSuccessUdpSend, waitErxudp) sitting in front of an
// idle Ready state that SendPropertyRequest kicks out of.
type commMachine struct {
	cfg    *Config
	writer *line.Writer
	reader *line.Reader
	codec  EchonetCodec
	param  *scan.CommunicationParameter

	state   CommState
	udpGate udpSendGate
}

func newCommMachine(cfg *Config, writer *line.Writer, reader *line.Reader, codec EchonetCodec, param *scan.CommunicationParameter) *commMachine {
	return &commMachine{cfg: cfg, writer: writer, reader: reader, codec: codec, param: param, state: Ready}
}

// Reset discards any in-progress wait and re-enters Ready (§5
// cancellation).
func (m *commMachine) Reset() {
	m.state = Ready
	m.udpGate.reset()
}

// SendPropertyRequest encodes a GET frame for properties, writes the
// SKSENDTO header and payload, flushes, and sets CommState to
// waitSuccessUdpSend. It does not block (§4.5).
func (m *commMachine) SendPropertyRequest(properties []echonet.PropertyCode, dest string) {
	req := m.codec.NewGetRequest(properties)
	writeSendTo(m.writer, dest, req.Build())
	m.state = WaitSuccessUdpSend
}

// Tick advances the comm machine by at most one line and reports
// whether it is back in Ready. cb is invoked exactly once, synchronously,
// the moment a decoded ERXUDP payload completes a pending request.
func (m *commMachine) Tick(cb AppCallback) bool {
	switch m.state {
	case Ready:
		return true

	case WaitSuccessUdpSend:
		text, ok := m.reader.TryReadLine()
		if !ok {
			return false
		}
		if strings.HasPrefix(text, "FAIL ER") {
			m.reader.Discard(defaultDelay(m.cfg))
			m.udpGate.reset()
			m.state = Ready
			return true
		}
		ready, failed := m.udpGate.observe(text, m.cfg.StrictUdpSendCheck)
		if !ready {
			return false
		}
		if failed {
			m.state = Ready
			return true
		}
		m.state = WaitErxudp
		return false

	case WaitErxudp:
		text, ok := m.reader.TryReadLine()
		if !ok {
			return false
		}
		if !strings.HasPrefix(text, "ERXUDP ") {
			return false
		}
		frame := erxudp.Parse(text)
		if !frame.Valid || frame.SenderIPv6 != m.param.IPv6Address {
			return false
		}
		if raw, err := erxudp.DecodePayload(frame); err == nil {
			if ef, err := m.codec.Parse(raw); err == nil && cb != nil {
				cb(ef)
			}
		}
		m.state = Ready
		return true

	default:
		return m.state == Ready
	}
}
