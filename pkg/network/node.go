package network

// ProcessResult is Node's verdict on one application message.
type ProcessResult struct {
	kind   processResultKind
	height uint32
}

type processResultKind int

const (
	resultAck processResultKind = iota
	resultIgnored
	resultDisconnect
	resultHeight
)

// Ack acknowledges a processed message with no further action.
func Ack() ProcessResult { return ProcessResult{kind: resultAck} }

// Ignored reports that Node had no use for this message.
func Ignored() ProcessResult { return ProcessResult{kind: resultIgnored} }

// DisconnectPeer tells the dispatcher to drop the peer that sent this
// message.
func DisconnectPeer() ProcessResult { return ProcessResult{kind: resultDisconnect} }

// Height reports a newly observed chain height for the sending peer,
// which the dispatcher folds into that peer's cached remote version.
func Height(h uint32) ProcessResult { return ProcessResult{kind: resultHeight, height: h} }

// Node is the upstream consumer of decoded, post-handshake messages. It is
// an external collaborator: this package never implements consensus,
// block validation, or persistence, only the contract connecting to them.
type Node interface {
	// Connected is called exactly once per peer, immediately after its
	// handshake completes.
	Connected(id PeerID)
	// Disconnected is called exactly once per peer on any termination
	// (socket error, protocol misbehavior, or node-directed removal).
	Disconnected(id PeerID)
	// Process handles one post-handshake application payload from id.
	Process(payload []byte, id PeerID) ProcessResult
}
