//go:build linux

package network

import (
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/warchant/murmel-go/internal/poller"
)

// Peer owns one nonblocking socket, its outbound mailbox, its inbound
// FrameBuffer, and its handshake state. All mutable state is guarded by
// mu, the "per-peer lock" referenced throughout the dispatcher design:
// callers must never hold it across a call into Node.
type Peer struct {
	ID   PeerID
	Addr string

	fd  int
	plr poller.Poller
	log *zap.Logger

	mu              sync.Mutex
	inbound         *FrameBuffer
	hs              handshakeState
	outbound        []*Message
	pendingWrite    []byte
	writeRegistered bool
	closed          bool
}

// readResult is what HandleReadable reports back to the dispatcher once
// the per-peer lock has been released, so that Node callbacks (connected,
// process) never run while the lock is held.
type readResult struct {
	Disconnect    bool
	DisconnectErr error
	Handshaked    bool
	Incoming      []*Message
}

// dialNonblocking resolves addr and returns a connected (or
// connection-in-progress) nonblocking TCP socket fd.
func dialNonblocking(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, err
	}

	domain := unix.AF_INET
	ip4 := tcpAddr.IP.To4()
	if ip4 == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}

	var sa unix.Sockaddr
	if ip4 != nil {
		var a unix.SockaddrInet4
		copy(a.Addr[:], ip4)
		a.Port = tcpAddr.Port
		sa = &a
	} else {
		var a unix.SockaddrInet6
		copy(a.Addr[:], tcpAddr.IP.To16())
		a.Port = tcpAddr.Port
		sa = &a
	}

	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// NewPeer initiates a nonblocking connect to addr and registers the
// resulting socket for edge-triggered read readiness. The connect itself
// may still be in progress when NewPeer returns; its completion is
// observed as the first writable edge, which is exactly what happens once
// the caller enqueues the outbound version message via Send.
func NewPeer(id PeerID, plr poller.Poller, addr string, log *zap.Logger) (*Peer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fd, err := dialNonblocking(addr)
	if err != nil {
		return nil, IO(err)
	}
	p := &Peer{
		ID:      id,
		Addr:    addr,
		fd:      fd,
		plr:     plr,
		log:     log,
		inbound: NewFrameBuffer(),
	}
	if err := plr.RegisterRead(fd, uint64(id)); err != nil {
		_ = unix.Close(fd)
		return nil, IO(err)
	}
	log.Debug("initiating connect", zap.Uint64("peer", uint64(id)), zap.String("addr", addr))
	return p, nil
}

// Send enqueues msg onto the outbound mailbox and, if the peer isn't
// already write-registered, flips its poller registration from read to
// write. This toggle is what drains the mailbox on the next writable
// event; it is what nonblocking callers (Node's own background work)
// trigger when they want to talk to a peer.
func (p *Peer) Send(msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enqueueLocked(msg)
}

func (p *Peer) enqueueLocked(msg *Message) error {
	if p.closed {
		return Generic("send on closed peer %d", p.ID)
	}
	p.outbound = append(p.outbound, msg)
	if !p.writeRegistered {
		_ = p.plr.Deregister(p.fd)
		if err := p.plr.RegisterWrite(p.fd, uint64(p.ID)); err != nil {
			return IO(err)
		}
		p.writeRegistered = true
	}
	return nil
}

// HandleWritable drains the outbound mailbox: every queued message is
// encoded and written to the socket. Edge-triggered readiness demands a
// full drain per event; if the kernel socket buffer fills up mid-drain,
// the unsent remainder is kept and the peer stays write-registered for
// the next writable edge rather than losing bytes or re-arming for read
// with data still pending.
func (p *Peer) HandleWritable() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if len(p.pendingWrite) == 0 {
			if len(p.outbound) == 0 {
				break
			}
			msg := p.outbound[0]
			p.outbound = p.outbound[1:]
			buf := NewFrameBuffer()
			if err := EncodeMessage(buf, msg); err != nil {
				return err
			}
			p.pendingWrite = buf.DrainToSlice()
		}

		n, err := unix.Write(p.fd, p.pendingWrite)
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			return IO(err)
		}
		p.pendingWrite = p.pendingWrite[n:]
	}

	_ = p.plr.Deregister(p.fd)
	if err := p.plr.RegisterRead(p.fd, uint64(p.ID)); err != nil {
		return IO(err)
	}
	p.writeRegistered = false
	return nil
}

// HandleReadable drains the socket into the inbound FrameBuffer and runs
// every fully-framed message through the handshake FSM. It never calls
// into Node: Passthrough messages are collected into the returned
// readResult so the dispatcher can dispatch them after releasing the
// per-peer lock.
func (p *Peer) HandleReadable(magic uint32, localNonce uint64) readResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	var res readResult
	var scratch [1024]byte

	for {
		n, err := unix.Read(p.fd, scratch[:])
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			res.Disconnect = true
			res.DisconnectErr = IO(err)
			return res
		}
		if n == 0 {
			break
		}
		_, _ = p.inbound.Write(scratch[:n])

		for {
			msg, err := DecodeMessage(p.inbound, magic)
			if err != nil {
				res.Disconnect = true
				res.DisconnectErr = err
				return res
			}
			if msg == nil {
				break
			}

			outcome, hsErr := classifyHandshake(&p.hs, msg, localNonce)
			switch outcome {
			case HandshakeDisconnect:
				res.Disconnect = true
				res.DisconnectErr = hsErr
				return res
			case HandshakeInProgress, HandshakeCompletedNow:
				if outcome == HandshakeCompletedNow {
					res.Handshaked = true
				}
				if msg.Command == "version" {
					if err := p.enqueueLocked(NewMessage(magic, "verack", nil)); err != nil {
						res.Disconnect = true
						res.DisconnectErr = err
						return res
					}
				}
			case HandshakePassthrough:
				res.Incoming = append(res.Incoming, msg)
			}
		}
	}
	return res
}

// SetStartHeight updates the remote version's cached start height, used
// when Node reports a new observed chain height for this peer.
func (p *Peer) SetStartHeight(h int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hs.remoteVersion != nil {
		p.hs.remoteVersion.StartHeight = h
	}
}

// Handshaked reports whether both halves of the handshake have completed.
func (p *Peer) Handshaked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hs.done()
}

// Shutdown tears the socket down bidirectionally and removes it from the
// poller. Safe to call more than once; only the first call has effect.
func (p *Peer) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.plr.Deregister(p.fd)
	_ = unix.Shutdown(p.fd, unix.SHUT_RDWR)
	_ = unix.Close(p.fd)
	p.log.Debug("peer shut down", zap.Uint64("peer", uint64(p.ID)))
}
