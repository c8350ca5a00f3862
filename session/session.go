package session

import (
	"github.com/hnw/skstack-broute/echonet"
	"github.com/hnw/skstack-broute/line"
	"github.com/hnw/skstack-broute/scan"
	"github.com/hnw/skstack-broute/serial"
)

// Session owns the aggregate data (credentials, negotiated
// channel/PAN/addresses, firmware version) and exposes the
// application-facing surface of §6: the two tick loops, the
// send-property-request primitive, and state introspection.
//
// The SerialPort is owned exclusively by Session; no locking is
// required under the single-threaded cooperative model of §5.
type Session struct {
	cred Credentials
	cfg  Config

	writer *line.Writer
	reader *line.Reader

	param    scan.CommunicationParameter
	self     SelfInfo
	firmware FirmwareVersion

	init *initMachine
	comm *commMachine

	statusCb func(InitState)
}

// New constructs a Session over port with the given credentials and
// default configuration (§6 "new(id, password, serial)").
func New(id, password string, port serial.Port) *Session {
	return NewWithConfig(id, password, port, DefaultConfig(), DefaultCodec, nil)
}

// NewWithConfig is New with an explicit Config, EchonetCodec, and
// init-parameter hook (run once readyCommunication's response decodes,
// §4.3). A nil hook is treated as always-succeeding.
func NewWithConfig(id, password string, port serial.Port, cfg Config, codec EchonetCodec, hook InitParamHook) *Session {
	s := &Session{
		cred:   Credentials{ID: id, Password: password},
		cfg:    cfg,
		writer: line.NewWriter(port),
		reader: line.NewReader(port),
	}
	s.init = newInitMachine(&s.cfg, s.cred, s.writer, s.reader, &s.param, &s.self, &s.firmware, codec, hook)
	s.comm = newCommMachine(&s.cfg, s.writer, s.reader, codec, &s.param)
	s.init.statusCb = func(st InitState) {
		if s.statusCb != nil {
			s.statusCb(st)
		}
	}
	return s
}

// SetStatusChangeCallback installs fn to be called once per
// InitializeTick with the current init state (§6).
func (s *Session) SetStatusChangeCallback(fn func(InitState)) {
	s.statusCb = fn
}

// InitializeTick advances the join state machine by at most one step
// and reports whether it has reached the terminal ReadySmartMeter
// state (§6).
func (s *Session) InitializeTick() bool {
	return s.init.Step()
}

// CommunicationTick advances the request/response coupling layer by
// at most one step and reports whether it is back to Ready (§6). cb
// receives the decoded ECHONET frame exactly once per completed
// request.
func (s *Session) CommunicationTick(cb AppCallback) bool {
	return s.comm.Tick(cb)
}

// SendPropertyRequest encodes and sends a GET request for properties
// against the negotiated neighbor address; non-blocking (§4.5, §6).
func (s *Session) SendPropertyRequest(properties []echonet.PropertyCode) {
	s.comm.SendPropertyRequest(properties, s.param.IPv6Address)
}

// GetInitState returns the join machine's current state.
func (s *Session) GetInitState() InitState { return s.init.state }

// GetCommState returns the comm machine's current state.
func (s *Session) GetCommState() CommState { return s.comm.state }

// ResetInitState discards in-progress join work and re-enters
// Uninitialized with every static flag cleared (§5, §8 idempotence).
func (s *Session) ResetInitState() { s.init.Reset() }

// ResetCommState discards any pending request and re-enters Ready.
func (s *Session) ResetCommState() { s.comm.Reset() }

// Parameter returns the negotiated CommunicationParameter (§3), valid
// once InitializeTick has progressed past the scan.
func (s *Session) Parameter() scan.CommunicationParameter { return s.param }

// SelfInfo returns the SKINFO-derived self information, populated once
// InitializeTick passes waitEinfo.
func (s *Session) SelfInfo() SelfInfo { return s.self }

// FirmwareVersion returns the EVER-derived firmware token, populated
// once InitializeTick passes waitEver.
func (s *Session) FirmwareVersion() FirmwareVersion { return s.firmware }

// ScanPasses returns how many consecutive scan passes have ended in
// ScanDone without both a beacon and a complete EPANDESC block since
// the last success (a pass aborted by a malformed EPANDESC line is not
// counted),
// purely for the scanRetryCount-derived observability ceiling of
// SPEC_FULL.md's Supplemented Features; it never forces a transition.
func (s *Session) ScanPasses() int { return s.init.scanPasses }

// StuckInScan reports whether ScanPasses has reached Config.ScanRetryCeiling,
// the sticky "stuck in scan" signal a status-change callback can act on.
func (s *Session) StuckInScan() bool {
	return s.cfg.ScanRetryCeiling > 0 && s.init.scanPasses >= s.cfg.ScanRetryCeiling
}
