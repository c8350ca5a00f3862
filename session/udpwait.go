package session

import "github.com/hnw/skstack-broute/event"

// udpSendGate is the dual-condition wait shared by
// waitInitParamSuccessUdpSend (§4.3) and waitSuccessUdpSend (§4.5): a
// bare OK ack and a UdpSent(0x21) event must both arrive, in either
// order, before the wait is satisfied. The two booleans are held here
// rather than in a handler closure so they can be reset explicitly at
// the transition boundary (§9) and inspected by tests (§8 invariant).
type udpSendGate struct {
	ackSeen  bool
	sentSeen bool
	param    byte
	hasParam bool
}

// observe folds one line into the gate. ready reports whether both
// conditions are now met (and resets the gate for next time); sendFailed
// reports whether, when ready, the UdpSent parameter indicated failure
// AND strict checking is enabled (§9 Open Question 1, Config.StrictUdpSendCheck).
func (g *udpSendGate) observe(text string, strict bool) (ready bool, sendFailed bool) {
	if text == "OK" {
		g.ackSeen = true
	}
	if ev, ok := event.Parse(text); ok && ev.Type == event.UdpSent {
		g.sentSeen = true
		g.param = ev.Parameter
		g.hasParam = ev.HasParam
	}
	if !(g.ackSeen && g.sentSeen) {
		return false, false
	}
	failed := strict && g.hasParam && event.UdpSentParameter(g.param) == event.UdpSentFail
	g.ackSeen = false
	g.sentSeen = false
	g.hasParam = false
	return true, failed
}

// reset clears the gate without requiring both conditions to have
// been seen, used on a full machine reset.
func (g *udpSendGate) reset() {
	*g = udpSendGate{}
}
