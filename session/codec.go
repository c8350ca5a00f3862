package session

import "github.com/hnw/skstack-broute/echonet"

// EchonetCodec is the injected ECHONET Lite encoder/decoder the state
// machine treats as an external collaborator (§1): it never
// interprets property semantics beyond framing (Non-goal).
type EchonetCodec interface {
	NewGetRequest(properties []echonet.PropertyCode) *echonet.Frame
	Parse(raw []byte) (*echonet.Frame, error)
}

// defaultCodec wires the echonet package's free functions into
// EchonetCodec without requiring callers to depend on the package
// directly.
type defaultCodec struct{}

// DefaultCodec is the production EchonetCodec, backed by the echonet
// package.
var DefaultCodec EchonetCodec = defaultCodec{}

func (defaultCodec) NewGetRequest(properties []echonet.PropertyCode) *echonet.Frame {
	return echonet.NewGetRequest(properties)
}

func (defaultCodec) Parse(raw []byte) (*echonet.Frame, error) {
	return echonet.Parse(raw)
}

// InitParamHook runs once readyCommunication's GET response decodes
// successfully (§4.3 waitInitParamErxudp). A non-nil error routes the
// machine back to readyCommunication to retry, same as a decoder
// failure (§4.7).
type InitParamHook func(*echonet.Frame) error

// AppCallback is invoked exactly once per successfully decoded ERXUDP
// payload in the Comm machine's waitErxudp row (§4.5), regardless of
// whether the hook itself reports an application-level problem;
// CommState always returns to Ready afterward.
type AppCallback func(*echonet.Frame)
