package network

import "github.com/warchant/murmel-go/pkg/network/payload"

// HandshakeOutcome classifies one incoming message processed by a Peer's
// handshake state machine.
type HandshakeOutcome int

const (
	// HandshakeInProgress: the handshake advanced but isn't complete.
	HandshakeInProgress HandshakeOutcome = iota
	// HandshakeCompletedNow: this message was the one that completed the
	// handshake (the other half was already satisfied).
	HandshakeCompletedNow
	// HandshakePassthrough: the handshake was already complete; this
	// message is an application message for the Node.
	HandshakePassthrough
	// HandshakeDisconnect: a misbehavior strong enough to drop the peer.
	HandshakeDisconnect
)

// handshakeState is the pair (remote_version.is_some(), got_verack) that
// defines the handshake FSM. The zero value is the start state.
type handshakeState struct {
	remoteVersion *payload.Version
	gotVerack     bool
}

func (s *handshakeState) done() bool {
	return s.remoteVersion != nil && s.gotVerack
}

// classifyHandshake advances s with one incoming Message and reports what
// the dispatcher should do about it. It performs no I/O: when it accepts a
// Version, the caller enqueues the Verack sent in response. localNonce
// detects self-connects.
func classifyHandshake(s *handshakeState, msg *Message, localNonce uint64) (HandshakeOutcome, error) {
	if s.done() {
		return HandshakePassthrough, nil
	}

	switch msg.Command {
	case "version":
		if s.remoteVersion != nil {
			return HandshakeDisconnect, Misbehaving(10, "duplicate version", "")
		}
		v, err := payload.DecodeVersion(msg.Payload)
		if err != nil {
			return HandshakeDisconnect, Misbehaving(20, "malformed version", "")
		}
		if v.Nonce == localNonce {
			return HandshakeDisconnect, Misbehaving(0, "self connection", "")
		}
		if !v.AcceptableFullNode() {
			return HandshakeDisconnect, Misbehaving(1, "not an acceptable segwit full node", "")
		}
		s.remoteVersion = v
		if s.done() {
			return HandshakeCompletedNow, nil
		}
		return HandshakeInProgress, nil

	case "verack":
		if s.gotVerack {
			return HandshakeDisconnect, Misbehaving(10, "duplicate verack", "")
		}
		s.gotVerack = true
		if s.done() {
			return HandshakeCompletedNow, nil
		}
		return HandshakeInProgress, nil

	default:
		return HandshakeDisconnect, Misbehaving(5, "message before handshake complete: "+msg.Command, "")
	}
}
