package payload

import (
	"encoding/binary"
	"fmt"
)

// Service bits advertised in a Version message's services field.
const (
	ServiceNetwork = 1 << 0 // NODE_NETWORK: a full archival node.
	ServiceWitness = 1 << 3 // NODE_WITNESS: segwit-capable.

	// ServiceNone is what this SPV implementation advertises about
	// itself: it serves nothing to other peers.
	ServiceNone = 0

	// SegwitRequiredServices is the mask an acceptable remote full node
	// must satisfy: NODE_NETWORK|NODE_WITNESS together.
	SegwitRequiredServices = ServiceNetwork | ServiceWitness

	// ProtocolVersion is the version this node announces: enough to
	// negotiate no-tx-relay (BIP 37 companion flag), nothing more.
	ProtocolVersion = 70001

	// MinAcceptableVersion is the lowest protocol version an inbound
	// peer's Version may advertise and still be accepted: segwit
	// (BIP 144) requires 70013 or later.
	MinAcceptableVersion = 70013
)

// Version is the handshake-opening payload exchanged by both sides of a
// connection.
type Version struct {
	Version     int32
	Services    uint64
	Timestamp   int64
	Receiver    NetAddr
	Sender      NetAddr
	Nonce       uint64
	UserAgent   string
	StartHeight int32
	Relay       bool
}

// NewVersion builds this node's outbound version payload.
func NewVersion(nonce uint64, userAgent string, height int32, receiver, sender NetAddr, timestamp int64) *Version {
	return &Version{
		Version:     ProtocolVersion,
		Services:    ServiceNone,
		Timestamp:   timestamp,
		Receiver:    receiver,
		Sender:      sender,
		Nonce:       nonce,
		UserAgent:   userAgent,
		StartHeight: height,
		Relay:       false,
	}
}

// AcceptableFullNode reports whether this Version meets the SPV
// requirement that a remote peer be a segwit-capable full node running a
// recent enough protocol version.
func (v *Version) AcceptableFullNode() bool {
	return v.Services&SegwitRequiredServices == SegwitRequiredServices && v.Version >= MinAcceptableVersion
}

// Encode serialises v into the Bitcoin wire format for a version payload.
func (v *Version) Encode() []byte {
	out := make([]byte, 0, 4+8+8+netAddrSize*2+8+1+len(v.UserAgent)+4+1)

	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], uint32(v.Version))
	out = append(out, b4[:]...)

	var b8 [8]byte
	binary.LittleEndian.PutUint64(b8[:], v.Services)
	out = append(out, b8[:]...)

	binary.LittleEndian.PutUint64(b8[:], uint64(v.Timestamp))
	out = append(out, b8[:]...)

	out = append(out, v.Receiver.encode()...)
	out = append(out, v.Sender.encode()...)

	binary.LittleEndian.PutUint64(b8[:], v.Nonce)
	out = append(out, b8[:]...)

	out = putVarStr(out, v.UserAgent)

	binary.LittleEndian.PutUint32(b4[:], uint32(v.StartHeight))
	out = append(out, b4[:]...)

	relay := byte(0)
	if v.Relay {
		relay = 1
	}
	out = append(out, relay)
	return out
}

// DecodeVersion parses a version payload.
func DecodeVersion(b []byte) (*Version, error) {
	const fixedPrefix = 4 + 8 + 8 + netAddrSize*2 + 8
	if len(b) < fixedPrefix {
		return nil, fmt.Errorf("payload: short version message")
	}
	v := &Version{}
	v.Version = int32(binary.LittleEndian.Uint32(b[0:4]))
	v.Services = binary.LittleEndian.Uint64(b[4:12])
	v.Timestamp = int64(binary.LittleEndian.Uint64(b[12:20]))

	off := 20
	recv, err := decodeNetAddr(b[off:])
	if err != nil {
		return nil, err
	}
	v.Receiver = recv
	off += netAddrSize

	sender, err := decodeNetAddr(b[off:])
	if err != nil {
		return nil, err
	}
	v.Sender = sender
	off += netAddrSize

	v.Nonce = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	ua, n, err := readVarStr(b[off:])
	if err != nil {
		return nil, err
	}
	v.UserAgent = ua
	off += n

	if len(b) < off+4 {
		return nil, fmt.Errorf("payload: short version message tail")
	}
	v.StartHeight = int32(binary.LittleEndian.Uint32(b[off : off+4]))
	off += 4

	if len(b) > off {
		v.Relay = b[off] != 0
	}
	return v, nil
}
