package line

import (
	"fmt"

	"github.com/hnw/skstack-broute/serial"
)

// Command identifies a member of the fixed SK* vocabulary table
// (§4.6). Composing a command from its enum value rather than a raw
// string keeps the state machine's emitted commands exhaustively
// checkable.
type Command int

const (
	CmdSetRegister Command = iota
	CmdDisableEcho
	CmdGetSKStackVersion
	CmdTerminateSKStack
	CmdGetSKInfo
	CmdConvertMac2IPv6
	CmdSetSKStackPassword
	CmdSetSKStackID
	CmdJoinSKStack
	CmdScanSKStack
	CmdResetSKStack
	CmdReadOpt
	CmdWriteOpt
)

var commandTable = map[Command]string{
	CmdSetRegister:         "SKSREG",
	CmdDisableEcho:         "SKSREG SFE 0",
	CmdGetSKStackVersion:   "SKVER",
	CmdTerminateSKStack:    "SKTERM",
	CmdGetSKInfo:           "SKINFO",
	CmdConvertMac2IPv6:     "SKLL64",
	CmdSetSKStackPassword:  "SKSETPWD C",
	CmdSetSKStackID:        "SKSETRBID",
	CmdJoinSKStack:         "SKJOIN",
	CmdScanSKStack:         "SKSCAN",
	CmdResetSKStack:        "SKRESET",
	CmdReadOpt:             "ROPT",
	CmdWriteOpt:            "WOPT",
}

// VirtualRegister names the SKSREG S<hex> register numbers the
// original firmware documents (original_source/BP35A1.hpp). The join
// sequence only ever drives EchoBack, ChannelNumber and PanId; the
// rest are exposed so a caller can tune PANA session behavior
// directly through SetRegister.
type VirtualRegister byte

const (
	RegChannelNumber          VirtualRegister = 0x02
	RegPanId                  VirtualRegister = 0x03
	RegFrameCounter           VirtualRegister = 0x07
	RegPairingId              VirtualRegister = 0x0A
	RegAnswerBeaconRequest    VirtualRegister = 0x15
	RegPanaSessionLifeTime    VirtualRegister = 0x16
	RegAutoReauthentication   VirtualRegister = 0x17
	RegMacBroadcastEncryption VirtualRegister = 0xA0
	RegIcmpEcho               VirtualRegister = 0xA1
	RegLimitSendtime          VirtualRegister = 0xFB
	RegCumulativeSendingTime  VirtualRegister = 0xFD
	RegEchoBack               VirtualRegister = 0xFE
	RegAutoLoad               VirtualRegister = 0xFF
)

// Writer formats and writes commands from the fixed vocabulary table.
type Writer struct {
	port serial.Port
}

// NewWriter wraps port.
func NewWriter(port serial.Port) *Writer {
	return &Writer{port: port}
}

// Write emits cmd with no argument.
func (w *Writer) Write(cmd Command) error {
	return w.port.WriteLine(commandTable[cmd])
}

// WriteArg emits "<cmd> <arg>".
func (w *Writer) WriteArg(cmd Command, arg string) error {
	return w.port.WriteLine(fmt.Sprintf("%s %s", commandTable[cmd], arg))
}

// SetRegister composes "SKSREG S<hex> <arg>" and writes it, the
// register-set command of §4.6.
func (w *Writer) SetRegister(reg VirtualRegister, arg string) error {
	return w.port.WriteLine(fmt.Sprintf("SKSREG S%X %s", byte(reg), arg))
}

// WriteScan emits "SKSCAN <mode> <channelMaskHex8> <duration>".
func (w *Writer) WriteScan(mode int, channelMask uint32, duration int) error {
	return w.port.WriteLine(fmt.Sprintf("SKSCAN %d %08X %d", mode, channelMask, duration))
}

// WriteRaw emits text as a single CRLF-terminated line, for commands
// the table above doesn't shape. The SKSENDTO header and its binary
// payload go through WriteBytes instead (see session.writeSendTo).
func (w *Writer) WriteRaw(text string) error {
	return w.port.WriteLine(text)
}

// WriteBytes writes buf verbatim (no CRLF appended), for the raw
// payload bytes following an SKSENDTO header.
func (w *Writer) WriteBytes(buf []byte) (int, error) {
	return w.port.WriteBytes(buf)
}

// Flush flushes the underlying port.
func (w *Writer) Flush() error {
	return w.port.Flush()
}
