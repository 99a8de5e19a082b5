package network

import "sync/atomic"

// PeerID is a process-unique, monotonically increasing token identifying
// one connected remote. IDs are never reused within a process: reuse would
// confuse log traces and open a race window where a readiness event
// targets a socket that has already been freed and replaced.
type PeerID uint64

// idGenerator hands out strictly increasing PeerIDs.
type idGenerator struct {
	next atomic.Uint64
}

func (g *idGenerator) nextID() PeerID {
	return PeerID(g.next.Add(1))
}
