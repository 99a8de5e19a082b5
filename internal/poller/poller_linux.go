//go:build linux

package poller

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller implements Poller on top of a single epoll instance.
//
// Registration is keyed by fd at the kernel level (epoll has no concept of
// an opaque token), so epollPoller keeps its own fd->token table under a
// mutex and resolves every returned event through it. A fd removed from the
// table by Deregister whose event nonetheless arrives in the same Wait
// batch (the kernel queued it before the EPOLL_CTL_DEL took effect) is
// silently dropped rather than misattributed to whatever token later reused
// that fd number.
type epollPoller struct {
	epfd int

	mu     sync.Mutex
	tokens map[int]uint64
	closed bool
}

// New creates a Linux epoll-backed Poller.
func New() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:   fd,
		tokens: make(map[int]uint64),
	}, nil
}

func (p *epollPoller) register(fd int, token uint64, events uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	p.tokens[fd] = token
	return nil
}

func (p *epollPoller) RegisterRead(fd int, token uint64) error {
	return p.register(fd, token, unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLET)
}

func (p *epollPoller) RegisterWrite(fd int, token uint64) error {
	return p.register(fd, token, unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLET)
}

func (p *epollPoller) Deregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.tokens[fd]; !ok {
		return ErrUnknownToken
	}
	delete(p.tokens, fd)
	// EPOLL_CTL_DEL on some kernels wants a non-nil event pointer even
	// though it is ignored; pass one defensively.
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{})
	return nil
}

func (p *epollPoller) Wait(out []Event, timeoutMs int) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	raw := make([]unix.EpollEvent, cap(out))
	if len(raw) == 0 {
		raw = make([]unix.EpollEvent, 64)
	}
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		token, ok := p.tokens[fd]
		if !ok {
			// Deregistered after the kernel queued this event; drop it.
			continue
		}
		e := Event{
			Token:         token,
			Readable:      raw[i].Events&unix.EPOLLIN != 0,
			Writable:      raw[i].Events&unix.EPOLLOUT != 0,
			HangupOrError: raw[i].Events&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		}
		if count < len(out) {
			out[count] = e
		} else {
			out = append(out, e)
		}
		count++
	}
	return count, nil
}

func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}
