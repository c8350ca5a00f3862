// Package session is the central driver: the Init and Comm state
// machines and the Session that owns credentials, negotiated
// parameters, and the two public tick loops (§2 item 7-8).
package session

// InitState is one waypoint of the initialization / join sequence
// (§4.3). Every waypoint §4.3 names by name is a distinct value here;
// the initial value is Uninitialized, the terminal value is
// ReadySmartMeter, and reset is allowed from any state.
type InitState int

const (
	Uninitialized InitState = iota
	WaitDisableEcho
	GetSKInfo
	WaitEinfo
	WaitEinfoOk
	GetSKStackVersion
	WaitEver
	WaitEverOk
	SetSKStackPassword
	WaitSetSKStackPassword
	SetSKStackId
	WaitSetSKStackId
	ReadOpt
	WaitReadOpt
	WriteOpt
	WaitWriteOpt
	ActiveScanWithIE
	WaitActiveScanWithIEOk
	WaitScanEvent
	WaitEpanDesc
	WaitEpanDescChannel
	WaitEpanDescChannelPage
	WaitEpanDescPanId
	WaitEpanDescAddr
	WaitEpanDescLQI
	WaitEpanDescPairId
	ConvertAddr
	WaitConvertAddr
	SetChannel
	WaitSetChannel
	SetPanId
	WaitSetPanId
	SkJoin
	WaitSkJoin
	WaitPana
	ReadyCommunication
	WaitInitParamSuccessUdpSend
	WaitInitParamErxudp
	ReadySmartMeter

	numInitStates
)

var initStateNames = [...]string{
	"Uninitialized",
	"WaitDisableEcho",
	"GetSKInfo",
	"WaitEinfo",
	"WaitEinfoOk",
	"GetSKStackVersion",
	"WaitEver",
	"WaitEverOk",
	"SetSKStackPassword",
	"WaitSetSKStackPassword",
	"SetSKStackId",
	"WaitSetSKStackId",
	"ReadOpt",
	"WaitReadOpt",
	"WriteOpt",
	"WaitWriteOpt",
	"ActiveScanWithIE",
	"WaitActiveScanWithIEOk",
	"WaitScanEvent",
	"WaitEpanDesc",
	"WaitEpanDescChannel",
	"WaitEpanDescChannelPage",
	"WaitEpanDescPanId",
	"WaitEpanDescAddr",
	"WaitEpanDescLQI",
	"WaitEpanDescPairId",
	"ConvertAddr",
	"WaitConvertAddr",
	"SetChannel",
	"WaitSetChannel",
	"SetPanId",
	"WaitSetPanId",
	"SkJoin",
	"WaitSkJoin",
	"WaitPana",
	"ReadyCommunication",
	"WaitInitParamSuccessUdpSend",
	"WaitInitParamErxudp",
	"ReadySmartMeter",
}

func (s InitState) String() string {
	if s < 0 || int(s) >= len(initStateNames) {
		return "InitState(invalid)"
	}
	return initStateNames[s]
}

// CommState is one of the three request/response coupling states of
// §4.5.
type CommState int

const (
	Ready CommState = iota
	WaitSuccessUdpSend
	WaitErxudp

	numCommStates
)

var commStateNames = [...]string{"Ready", "WaitSuccessUdpSend", "WaitErxudp"}

func (s CommState) String() string {
	if s < 0 || int(s) >= len(commStateNames) {
		return "CommState(invalid)"
	}
	return commStateNames[s]
}
