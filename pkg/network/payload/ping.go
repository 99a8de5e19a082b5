package payload

import (
	"encoding/binary"
	"fmt"
)

// Ping/Pong both carry a single nonce used to match requests to replies.
type Ping struct {
	Nonce uint64
}

// Encode serialises the ping payload.
func (p *Ping) Encode() []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, p.Nonce)
	return out
}

// DecodePing parses a ping (or pong) payload.
func DecodePing(b []byte) (*Ping, error) {
	if len(b) != 8 {
		return nil, fmt.Errorf("payload: ping payload must be 8 bytes, got %d", len(b))
	}
	return &Ping{Nonce: binary.LittleEndian.Uint64(b)}, nil
}
