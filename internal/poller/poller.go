// Package poller wraps a readiness multiplexer for nonblocking sockets.
//
// It mirrors the role mio plays in the original implementation this
// dispatcher was ported from: edge-triggered notifications, keyed by an
// opaque uint64 token rather than the bare file descriptor, so that fd
// reuse by the kernel after a close can never be mistaken for an event on
// a newer connection occupying the same number.
package poller

import "errors"

// ErrClosed is returned by any operation performed after Close.
var ErrClosed = errors.New("poller: closed")

// ErrUnknownToken is returned by Deregister for an fd that was never
// registered or was already deregistered.
var ErrUnknownToken = errors.New("poller: unknown token")

// Event is one readiness notification, translated from the raw epoll event
// back into the caller's token namespace.
type Event struct {
	Token    uint64
	Readable bool
	Writable bool
	// HangupOrError is set for EPOLLHUP/EPOLLERR/EPOLLRDHUP, the
	// operating-system-level peer-close or socket-error signal.
	HangupOrError bool
}

// Poller is the readiness multiplexer shared between the dispatcher and
// every Peer. All methods are safe for concurrent use: Register/Deregister
// may be called from any goroutine (Peer.send toggles registration from
// whichever goroutine is sending), while Wait is called only from the
// dispatcher's event loop goroutine.
type Poller interface {
	// RegisterRead arms fd for edge-triggered read + error readiness,
	// associating it with token. fd must not already be registered.
	RegisterRead(fd int, token uint64) error
	// RegisterWrite arms fd for edge-triggered write + error readiness.
	RegisterWrite(fd int, token uint64) error
	// Deregister removes fd from the poller. It must be called before a
	// registration is replaced with a different readiness mask, and
	// before the fd is closed.
	Deregister(fd int) error
	// Wait blocks until at least one event is ready, or timeoutMs
	// elapses (negative means wait forever), stores the ready events in
	// events starting at index 0, and returns how many it stored. One
	// call reports at most cap(events) events.
	Wait(events []Event, timeoutMs int) (int, error)
	// Close releases the underlying epoll descriptor. Subsequent calls
	// to any other method return ErrClosed.
	Close() error
}
