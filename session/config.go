package session

// Credentials is immutable after construction (§3): the route-B
// identifier and password the module authenticates PANA with.
type Credentials struct {
	ID       string
	Password string
}

// SelfInfo is the optional result of the SKINFO query (§3).
type SelfInfo struct {
	IPv6      string
	MAC64     string
	Channel   string
	PanID     string
	MAC16     string
	Populated bool
}

// FirmwareVersion is the ASCII token learned from EVER (§3).
type FirmwareVersion string

// ScanMode selects the SKSCAN mode argument (§3 ScanConfig).
type ScanMode int

const (
	ScanModeEDScan ScanMode = iota
	ScanModeActiveWithIE
	ScanModeActiveWithoutIE
)

// skscanModeArg is the literal numeric mode SKSCAN expects for each
// ScanMode, per original_source/BP35A1.hpp's
// "enum class ScanMode { EDScan, ActiveScanWithIE = 2, ActiveScanWithoutIE }".
var skscanModeArg = map[ScanMode]int{
	ScanModeEDScan:          0,
	ScanModeActiveWithIE:    2,
	ScanModeActiveWithoutIE: 3,
}

// ScanConfig holds the compile-time-overridable scan defaults of §3.
type ScanConfig struct {
	Mode           ScanMode
	ChannelMask    uint32
	InitialDuration int
}

// DefaultScanConfig matches §3/§4.3: full channel mask, active scan
// with IE, initial duration 3.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Mode:            ScanModeActiveWithIE,
		ChannelMask:     0xFFFFFFFF,
		InitialDuration: 3,
	}
}

// Config is the full set of configuration knobs of §6, plus the two
// named Open Question decisions of §4.4/§4.7 and DESIGN.md.
type Config struct {
	Scan ScanConfig

	DefaultTimeoutMs int
	DefaultDelayMs   int
	ScanDurationCap  int

	// StrictUdpSendCheck, when true, makes waitInitParamSuccessUdpSend
	// / waitSuccessUdpSend also reject a UdpSent event whose parameter
	// byte is UdpSentFail. The source never performed this check (a
	// reported send failure still advanced); default false preserves
	// that behavior (§9 Open Question 1).
	StrictUdpSendCheck bool

	// ResetScanDurationOnSuccess, when true, resets the escalating scan
	// duration counter back to Scan.InitialDuration once a scan pass
	// succeeds. The source never reset it; default false preserves that
	// behavior (§9 Open Question 2).
	ResetScanDurationOnSuccess bool

	// ScanRetryCeiling is the number of consecutive scan passes ending
	// in ScanDone without a beacon and a complete EPANDESC block at which
	// Session.StuckInScan starts reporting true. A pass aborted by a
	// malformed EPANDESC line is not counted. It is purely
	// observability: it never forces a transition (original_source's
	// scanRetryCount, SPEC_FULL.md Supplemented Features).
	ScanRetryCeiling int
}

// DefaultConfig matches §6's named defaults.
func DefaultConfig() Config {
	return Config{
		Scan:             DefaultScanConfig(),
		DefaultTimeoutMs: 5000,
		DefaultDelayMs:   100,
		ScanDurationCap:  14,
		ScanRetryCeiling: 9,
	}
}
