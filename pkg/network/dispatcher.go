//go:build linux

package network

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warchant/murmel-go/internal/poller"
	"github.com/warchant/murmel-go/pkg/metrics"
	"github.com/warchant/murmel-go/pkg/network/payload"
	"github.com/warchant/murmel-go/pkg/reputation"
)

// errHangup marks a disconnect triggered by the poller's hangup/error
// readiness bit rather than a read or write failure.
var errHangup = errors.New("socket hangup or error")

// DispatcherConfig configures a Dispatcher. Zero-value fields pick
// reasonable defaults: a no-op logger, no metrics, no reputation store.
// Loading these from a file, flag set, or environment is an external
// collaborator's job.
type DispatcherConfig struct {
	// Magic is the network's message magic, prefixed on every frame.
	Magic uint32
	// UserAgent is advertised in this dispatcher's outbound version
	// messages.
	UserAgent string
	// LocalAddr is this dispatcher's own externally reachable address, if
	// any, used to populate the version message's sender field. Left
	// empty, the sender address is the zero address: a dispatcher with no
	// known public address has nothing truthful to claim there.
	LocalAddr string

	Log        *zap.Logger
	Metrics    *metrics.Collector
	Reputation *reputation.Store
}

// Dispatcher owns the poller, the peer registry, and the handshake nonce
// for one P2P session. It is the translation of the original
// implementation's event-loop-plus-registry pair into a single type whose
// Run method is the whole of the nonblocking reactor.
type Dispatcher struct {
	id uuid.UUID

	magic     uint32
	localAddr string
	userAgent string
	nonce     uint64
	height    atomic.Uint32

	peers  *Registry
	poller poller.Poller
	ids    idGenerator

	log        *zap.Logger
	metrics    *metrics.Collector
	reputation *reputation.Store
}

// NewDispatcher builds a Dispatcher backed by a fresh OS poller. The
// returned Dispatcher owns no peers until AddPeer is called.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	plr, err := poller.New()
	if err != nil {
		return nil, IO(err)
	}

	nonce, err := randomNonce()
	if err != nil {
		_ = plr.Close()
		return nil, Generic("generating handshake nonce: %v", err)
	}

	id := uuid.New()
	log = log.With(zap.String("dispatcher", id.String()))

	return &Dispatcher{
		id:         id,
		magic:      cfg.Magic,
		localAddr:  cfg.LocalAddr,
		userAgent:  cfg.UserAgent,
		nonce:      nonce,
		peers:      NewRegistry(),
		poller:     plr,
		log:        log,
		metrics:    cfg.Metrics,
		reputation: cfg.Reputation,
	}, nil
}

func randomNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ID identifies this dispatcher instance, useful for correlating its logs
// and metrics across a fleet of processes.
func (d *Dispatcher) ID() uuid.UUID { return d.id }

// SetHeight updates the chain height this dispatcher advertises to peers
// it connects to after this call.
func (d *Dispatcher) SetHeight(h uint32) { d.height.Store(h) }

// PeerCount reports the number of peers currently registered.
func (d *Dispatcher) PeerCount() int { return d.peers.Count() }

// Peers returns the registry this dispatcher shares with Node, through
// which a Node looks up a Peer by ID and Sends to it.
func (d *Dispatcher) Peers() *Registry { return d.peers }

// Close releases the dispatcher's poller. Call after Run returns.
func (d *Dispatcher) Close() error {
	return d.poller.Close()
}

// AddPeer dials addr, registers the resulting connection, and queues an
// outbound version message. It returns as soon as the connect is
// initiated and the version message is enqueued; the connect itself, and
// the rest of the handshake, complete asynchronously once Run observes
// writable and readable events for the new peer.
func (d *Dispatcher) AddPeer(addr string) (PeerID, error) {
	id := d.ids.nextID()
	p, err := NewPeer(id, d.poller, addr, d.log)
	if err != nil {
		return 0, err
	}

	v := payload.NewVersion(
		d.nonce,
		d.userAgent,
		int32(d.height.Load()),
		payload.NewNetAddr(addr, payload.SegwitRequiredServices),
		payload.NewNetAddr(d.localAddr, payload.ServiceNone),
		time.Now().Unix(),
	)
	if err := p.Send(NewMessage(d.magic, "version", v.Encode())); err != nil {
		p.Shutdown()
		return 0, err
	}

	d.peers.Insert(p)
	if d.metrics != nil {
		d.metrics.PeersActive.Inc()
	}
	d.log.Info("peer added", zap.Uint64("peer", uint64(id)), zap.String("addr", addr))
	return id, nil
}

// Run drives the event loop, handing every readiness event to
// processEvent, until a call to the poller's Wait fails. It returns nil
// when Wait reports that the poller has been closed (see Close) and an IO
// error for any other poller failure; errors confined to one peer only
// disconnect that peer. Closing the poller does not wake a Wait that is
// already blocked.
func (d *Dispatcher) Run(node Node) error {
	events := make([]poller.Event, 64)
	for {
		n, err := d.poller.Wait(events, -1)
		if err != nil {
			if err == poller.ErrClosed {
				return nil
			}
			return IO(err)
		}
		for i := 0; i < n; i++ {
			d.processEvent(node, events[i])
		}
	}
}

// processEvent handles one readiness event for one peer. It is the
// translation of the original event-loop match arm: hangups disconnect
// immediately, writable events drain the mailbox, and readable events are
// decoded and either consumed by the handshake or handed to Node — always
// after the peer's own lock has been released.
func (d *Dispatcher) processEvent(node Node, ev poller.Event) {
	id := PeerID(ev.Token)

	if ev.HangupOrError {
		d.disconnect(node, id, IO(errHangup))
		return
	}

	if ev.Writable {
		p, ok := d.peers.Get(id)
		if !ok {
			return
		}
		if err := p.HandleWritable(); err != nil {
			d.disconnect(node, id, err)
			return
		}
	}

	if ev.Readable {
		p, ok := d.peers.Get(id)
		if !ok {
			return
		}
		res := p.HandleReadable(d.magic, d.nonce)
		if res.Disconnect {
			d.disconnect(node, id, res.DisconnectErr)
			return
		}
		if res.Handshaked {
			if d.metrics != nil {
				d.metrics.HandshakesCompleted.Inc()
			}
			node.Connected(id)
		}
		for _, msg := range res.Incoming {
			result := node.Process(msg.Payload, id)
			switch result.kind {
			case resultDisconnect:
				d.disconnect(node, id, nil)
				return
			case resultHeight:
				p.SetStartHeight(int32(result.height))
			}
		}
	}
}

// disconnect tears down the peer's socket, removes it from the registry,
// folds any misbehavior score into the reputation store, and notifies
// Node exactly once. It is idempotent: concurrent triggers for the same
// peer (a hangup racing a decode error, for instance) only ever produce
// one Disconnected call, since Registry.Remove reports whether it was the
// one to actually delete the entry.
func (d *Dispatcher) disconnect(node Node, id PeerID, cause error) {
	p, ok := d.peers.Get(id)
	if ok {
		p.Shutdown()
	}

	if !d.peers.Remove(id) {
		return
	}

	if d.metrics != nil {
		d.metrics.PeersActive.Dec()
		reason := "closed"
		if kind, ok := KindOf(cause); ok {
			reason = kind.String()
		}
		d.metrics.Disconnects.WithLabelValues(reason).Inc()
	}

	if e, ok := cause.(*Error); ok && e.Kind == KindMisbehaving {
		addr := e.Addr
		if addr == "" && p != nil {
			addr = p.Addr
		}
		if d.metrics != nil {
			d.metrics.MisbehaviorByReason.WithLabelValues(e.Msg).Inc()
		}
		if d.reputation != nil && addr != "" {
			if _, err := d.reputation.AddScore(addr, e.Score); err != nil {
				d.log.Warn("recording misbehavior score failed", zap.String("addr", addr), zap.Error(err))
			}
		}
	}

	if cause != nil {
		d.log.Info("peer disconnected", zap.Uint64("peer", uint64(id)), zap.Error(cause))
	} else {
		d.log.Info("peer disconnected", zap.Uint64("peer", uint64(id)))
	}
	node.Disconnected(id)
}
