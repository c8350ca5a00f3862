package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/erxudp"
	"github.com/hnw/skstack-broute/event"
	"github.com/hnw/skstack-broute/line"
	"github.com/hnw/skstack-broute/scan"
)

// initMachine is the join state machine (§4.3). It advances by at
// most one state transition per Step call (§3 invariant); reading
// rows consume at most one buffered line per Step, non-reading rows
// fire their emission unconditionally.
//
// Static retry counters (scan duration, the disable-echo dual flag,
// the scan-event dual flag, the udp-send dual flag) live on this
// struct rather than inside a handler closure, so they can be reset
// explicitly at a transition boundary and inspected by tests (§9).
type initMachine struct {
	cfg  *Config
	cred Credentials

	writer *line.Writer
	reader *line.Reader

	state InitState

	echoSeen bool
	okSeen   bool

	scanDuration     int
	receivedBeacon   bool
	receivedEpanDesc bool
	epanDesc         scan.Descriptor
	scanPasses       int

	udpGate udpSendGate

	param *scan.CommunicationParameter
	self  *SelfInfo
	fw    *FirmwareVersion

	codec    EchonetCodec
	initHook InitParamHook

	statusCb func(InitState)
}

func newInitMachine(cfg *Config, cred Credentials, writer *line.Writer, reader *line.Reader, param *scan.CommunicationParameter, self *SelfInfo, fw *FirmwareVersion, codec EchonetCodec, hook InitParamHook) *initMachine {
	return &initMachine{
		cfg:      cfg,
		cred:     cred,
		writer:   writer,
		reader:   reader,
		state:    Uninitialized,
		param:    param,
		self:     self,
		fw:       fw,
		codec:    codec,
		initHook: hook,
	}
}

// Reset re-enters Uninitialized from any state and clears every
// static flag, so a fresh Step sequence starts with zero carry-over
// (§8 idempotence property). The scan duration counter and the
// scan-pass count are never reset here (Config.ResetScanDurationOnSuccess
// only acts on a successful scan pass, §9 Open Question 2); callers
// wanting a hard reset of them should construct a new Session.
func (m *initMachine) Reset() {
	m.state = Uninitialized
	m.echoSeen = false
	m.okSeen = false
	m.receivedBeacon = false
	m.receivedEpanDesc = false
	m.epanDesc.Reset()
	m.udpGate.reset()
	m.param.Clear()
}

func (m *initMachine) emitStatus() {
	if m.statusCb != nil {
		m.statusCb(m.state)
	}
}

// reading reports whether state's row requires a buffered line before
// it can fire (§3 StateRow.reads-input).
func reading(s InitState) bool {
	switch s {
	case Uninitialized, GetSKInfo, GetSKStackVersion, SetSKStackPassword,
		SetSKStackId, ReadOpt, WriteOpt, ActiveScanWithIE, ConvertAddr,
		SetChannel, SetPanId, SkJoin, ReadyCommunication, ReadySmartMeter:
		return false
	default:
		return true
	}
}

// Step advances the machine by at most one transition and reports
// whether the terminal state has been reached.
func (m *initMachine) Step() bool {
	if reading(m.state) {
		text, ok := m.reader.TryReadLine()
		if !ok {
			m.emitStatus()
			return m.state == ReadySmartMeter
		}
		m.state = m.handleReading(m.state, text)
	} else {
		m.state = m.handleNonReading(m.state)
	}
	m.emitStatus()
	return m.state == ReadySmartMeter
}

// failToUninitialized applies §4.7's "FAIL ER… anywhere a plain OK
// was awaited" rule: drain the buffer and reset to Uninitialized.
func (m *initMachine) failToUninitialized() InitState {
	m.reader.Discard(defaultDelay(m.cfg))
	m.Reset()
	return Uninitialized
}

func defaultDelay(cfg *Config) time.Duration {
	return time.Duration(cfg.DefaultDelayMs) * time.Millisecond
}

// waitOk is the shared shape of the many "await a bare OK, FAIL ER…
// means reset, anything else is ignored" rows (§4.7).
func (m *initMachine) waitOk(text string, onOk InitState, stay InitState) InitState {
	if strings.HasPrefix(text, "FAIL ER") {
		return m.failToUninitialized()
	}
	if text == "OK" || strings.HasPrefix(text, "OK ") {
		return onOk
	}
	return stay
}

func (m *initMachine) handleReading(state InitState, text string) InitState {
	switch state {
	case WaitDisableEcho:
		if strings.HasPrefix(text, "FAIL ER") {
			return m.failToUninitialized()
		}
		if strings.HasPrefix(text, "SKSREG") {
			m.echoSeen = true
		}
		if text == "OK" {
			m.okSeen = true
		}
		if m.echoSeen && m.okSeen {
			m.echoSeen = false
			m.okSeen = false
			return GetSKInfo
		}
		return WaitDisableEcho

	case WaitEinfo:
		fields := strings.Fields(text)
		if len(fields) != 6 || fields[0] != "EINFO" {
			return m.failToUninitialized()
		}
		*m.self = SelfInfo{
			IPv6:      fields[1],
			MAC64:     fields[2],
			Channel:   fields[3],
			PanID:     fields[4],
			MAC16:     fields[5],
			Populated: true,
		}
		return WaitEinfoOk

	case WaitEinfoOk:
		return m.waitOk(text, GetSKStackVersion, WaitEinfoOk)

	case WaitEver:
		if strings.HasPrefix(text, "FAIL ER") {
			return m.failToUninitialized()
		}
		if strings.HasPrefix(text, "EVER ") {
			*m.fw = FirmwareVersion(strings.TrimPrefix(text, "EVER "))
			return WaitEverOk
		}
		return WaitEver

	case WaitEverOk:
		return m.waitOk(text, SetSKStackPassword, WaitEverOk)

	case WaitSetSKStackPassword:
		return m.waitOk(text, SetSKStackId, WaitSetSKStackPassword)

	case WaitSetSKStackId:
		return m.waitOk(text, ReadOpt, WaitSetSKStackId)

	case WaitReadOpt:
		if strings.HasPrefix(text, "FAIL ER") {
			return m.failToUninitialized()
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			return WaitReadOpt
		}
		if len(fields) == 2 && fields[0] == "OK" && fields[1] == "01" {
			return ActiveScanWithIE
		}
		return WriteOpt

	case WaitWriteOpt:
		return m.waitOk(text, ActiveScanWithIE, WaitWriteOpt)

	case WaitActiveScanWithIEOk:
		return m.waitOk(text, WaitScanEvent, WaitActiveScanWithIEOk)

	case WaitScanEvent:
		ev, ok := event.Parse(text)
		if !ok {
			return WaitScanEvent
		}
		switch ev.Type {
		case event.Beacon:
			m.param.DestIPv6 = ev.Sender
			m.receivedBeacon = true
			m.epanDesc.Reset()
			return WaitEpanDesc
		case event.ScanDone:
			if m.receivedBeacon && m.receivedEpanDesc {
				m.receivedBeacon = false
				m.receivedEpanDesc = false
				m.scanPasses = 0
				if m.cfg.ResetScanDurationOnSuccess {
					m.scanDuration = m.cfg.Scan.InitialDuration
				}
				return ConvertAddr
			}
			m.receivedBeacon = false
			m.receivedEpanDesc = false
			m.scanPasses++
			return ActiveScanWithIE
		default:
			return WaitScanEvent
		}

	case WaitEpanDesc:
		if text != "EPANDESC" {
			m.receivedBeacon = false
			return ActiveScanWithIE
		}
		return WaitEpanDescChannel

	case WaitEpanDescChannel, WaitEpanDescChannelPage, WaitEpanDescPanId,
		WaitEpanDescAddr, WaitEpanDescLQI, WaitEpanDescPairId:
		if !m.epanDesc.Step(text, m.param) {
			m.receivedBeacon = false
			m.receivedEpanDesc = false
			m.epanDesc.Reset()
			return ActiveScanWithIE
		}
		if m.epanDesc.Done() {
			m.receivedEpanDesc = true
			return WaitScanEvent
		}
		return nextEpanDescState(state)

	case WaitConvertAddr:
		if len(text) == 39 {
			m.param.IPv6Address = text
			return SetChannel
		}
		return ActiveScanWithIE

	case WaitSetChannel:
		return m.waitOk(text, SetPanId, WaitSetChannel)

	case WaitSetPanId:
		return m.waitOk(text, SkJoin, WaitSetPanId)

	case WaitSkJoin:
		return m.waitOk(text, WaitPana, WaitSkJoin)

	case WaitPana:
		ev, ok := event.Parse(text)
		if !ok {
			return WaitPana
		}
		switch ev.Type {
		case event.PanaOk:
			return ReadyCommunication
		case event.PanaFail:
			return ConvertAddr
		default:
			return WaitPana
		}

	case WaitInitParamSuccessUdpSend:
		return m.stepUdpSendWait(WaitInitParamSuccessUdpSend, text, WaitInitParamErxudp, ReadyCommunication)

	case WaitInitParamErxudp:
		if !strings.HasPrefix(text, "ERXUDP ") {
			return WaitInitParamErxudp
		}
		frame := erxudp.Parse(text)
		if !frame.Valid || frame.SenderIPv6 != m.param.IPv6Address {
			return WaitInitParamErxudp
		}
		echoFrame, err := decodeErxudpPayload(m.codec, frame)
		if err != nil {
			return ReadyCommunication
		}
		if m.initHook != nil {
			if err := m.initHook(echoFrame); err != nil {
				return ReadyCommunication
			}
		}
		return ReadySmartMeter

	default:
		return state
	}
}

// stepUdpSendWait implements waitInitParamSuccessUdpSend (§4.3) via
// the shared udpSendGate.
func (m *initMachine) stepUdpSendWait(current InitState, text string, onOk InitState, onStrictFail InitState) InitState {
	if strings.HasPrefix(text, "FAIL ER") {
		return m.failToUninitialized()
	}
	ready, failed := m.udpGate.observe(text, m.cfg.StrictUdpSendCheck)
	if !ready {
		return current
	}
	if failed {
		return onStrictFail
	}
	return onOk
}

func nextEpanDescState(s InitState) InitState {
	switch s {
	case WaitEpanDescChannel:
		return WaitEpanDescChannelPage
	case WaitEpanDescChannelPage:
		return WaitEpanDescPanId
	case WaitEpanDescPanId:
		return WaitEpanDescAddr
	case WaitEpanDescAddr:
		return WaitEpanDescLQI
	case WaitEpanDescLQI:
		return WaitEpanDescPairId
	default:
		return s
	}
}

func (m *initMachine) handleNonReading(state InitState) InitState {
	switch state {
	case Uninitialized:
		m.writer.Write(line.CmdTerminateSKStack)
		m.writer.Write(line.CmdResetSKStack)
		m.writer.Flush()
		m.reader.Discard(50 * time.Millisecond)
		m.writer.Write(line.CmdDisableEcho)
		m.writer.Flush()
		return WaitDisableEcho

	case GetSKInfo:
		m.writer.Write(line.CmdGetSKInfo)
		m.writer.Flush()
		return WaitEinfo

	case GetSKStackVersion:
		m.writer.Write(line.CmdGetSKStackVersion)
		m.writer.Flush()
		return WaitEver

	case SetSKStackPassword:
		m.writer.WriteArg(line.CmdSetSKStackPassword, m.cred.Password)
		m.writer.Flush()
		return WaitSetSKStackPassword

	case SetSKStackId:
		m.writer.WriteArg(line.CmdSetSKStackID, m.cred.ID)
		m.writer.Flush()
		return WaitSetSKStackId

	case ReadOpt:
		m.writer.Write(line.CmdReadOpt)
		m.writer.Flush()
		return WaitReadOpt

	case WriteOpt:
		m.writer.WriteArg(line.CmdWriteOpt, "01")
		m.writer.Flush()
		return WaitWriteOpt

	case ActiveScanWithIE:
		if m.scanDuration == 0 {
			m.scanDuration = m.cfg.Scan.InitialDuration
		} else if m.scanDuration < m.cfg.ScanDurationCap {
			m.scanDuration++
		}
		mode := skscanModeArg[m.cfg.Scan.Mode]
		m.writer.WriteScan(mode, m.cfg.Scan.ChannelMask, m.scanDuration)
		m.writer.Flush()
		return WaitActiveScanWithIEOk

	case ConvertAddr:
		m.writer.WriteArg(line.CmdConvertMac2IPv6, m.param.DestIPv6)
		m.writer.Flush()
		return WaitConvertAddr

	case SetChannel:
		m.writer.SetRegister(line.RegChannelNumber, m.param.Channel)
		m.writer.Flush()
		return WaitSetChannel

	case SetPanId:
		m.writer.SetRegister(line.RegPanId, m.param.PanID)
		m.writer.Flush()
		return WaitSetPanId

	case SkJoin:
		m.writer.WriteArg(line.CmdJoinSKStack, m.param.IPv6Address)
		m.writer.Flush()
		return WaitSkJoin

	case ReadyCommunication:
		m.sendInitParamRequest()
		return WaitInitParamSuccessUdpSend

	case ReadySmartMeter:
		return ReadySmartMeter

	default:
		return state
	}
}

// sendInitParamRequest emits the ECHONET GET for {Coefficient,
// CumulativeEnergyUnit} readyCommunication issues before waiting for
// the dual udp-send condition (§4.3).
func (m *initMachine) sendInitParamRequest() {
	req := m.codec.NewGetRequest([]echonet.PropertyCode{echonet.Coefficient, echonet.CumulativeEnergyUnit})
	writeSendTo(m.writer, m.param.IPv6Address, req.Build())
}

// writeSendTo emits the SKSENDTO header and raw payload bytes per §6's
// outbound UDP frame format: "SKSENDTO 01 <destIPv6> 0E1A 01
// <lenHex4> " followed by exactly <len> payload bytes, then CRLF.
func writeSendTo(w *line.Writer, dest string, payload []byte) {
	header := "SKSENDTO 01 " + dest + " 0E1A 01 " + hex4(len(payload)) + " "
	w.WriteBytes([]byte(header))
	w.WriteBytes(payload)
	w.WriteBytes([]byte("\r\n"))
	w.Flush()
}

func hex4(n int) string {
	s := strconv.FormatInt(int64(n), 16)
	for len(s) < 4 {
		s = "0" + s
	}
	return strings.ToUpper(s)
}

// decodeErxudpPayload decodes an ERXUDP frame's payload, which is
// either raw binary or ASCII-hex depending on the negotiated WOPT
// mode (§3 ErxUdpFrame, grounded on the teacher's
// readCorrespondingEchonetFrame / original_source/ErxUdp.hpp).
func decodeErxudpPayload(codec EchonetCodec, frame erxudp.Frame) (*echonet.Frame, error) {
	raw, err := erxudp.DecodePayload(frame)
	if err != nil {
		return nil, err
	}
	return codec.Parse(raw)
}
