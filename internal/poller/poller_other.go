//go:build !linux

package poller

import "errors"

// ErrUnsupported is returned by New on platforms without an epoll-style
// edge-triggered readiness API wired up. The dispatcher's reactor is
// Linux-only, same as the production reactors (evio, gnet, CloudWeGo
// netpoll) this package takes its shape from.
var ErrUnsupported = errors.New("poller: only linux is supported")

// New always fails on non-Linux platforms.
func New() (Poller, error) {
	return nil, ErrUnsupported
}
