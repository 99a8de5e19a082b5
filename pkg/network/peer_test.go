//go:build linux

package network

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warchant/murmel-go/internal/poller"
)

func listenAndDial(t *testing.T) (plr poller.Poller, p *Peer, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	plr, err = poller.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = plr.Close() })

	p, err = NewPeer(1, plr, ln.Addr().String(), nil)
	require.NoError(t, err)

	select {
	case server = <-accepted:
		t.Cleanup(func() { _ = server.Close() })
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return plr, p, server
}

func waitFor(t *testing.T, plr poller.Poller, want func(poller.Event) bool) poller.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		events := make([]poller.Event, 8)
		n, err := plr.Wait(events, 200)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			if want(events[i]) {
				return events[i]
			}
		}
	}
	t.Fatal("timed out waiting for poller event")
	return poller.Event{}
}

func TestPeerSendDrainsOnWritable(t *testing.T) {
	_, p, server := listenAndDial(t)

	msg := NewMessage(testMagic, "ping", (&[8]byte{1, 2, 3, 4, 5, 6, 7, 8})[:])
	require.NoError(t, p.Send(msg))

	require.NoError(t, p.HandleWritable())

	buf := make([]byte, headerSize+8)
	n, err := server.Read(buf)
	require.NoError(t, err)
	require.Equal(t, headerSize+8, n)
	require.Equal(t, "ping", trimCommand(buf[4:16]))
}

func TestPeerHandleReadableRejectsMessageBeforeHandshake(t *testing.T) {
	plr, p, server := listenAndDial(t)

	fb := NewFrameBuffer()
	require.NoError(t, EncodeMessage(fb, NewMessage(testMagic, "ping", nil)))
	_, err := server.Write(fb.DrainToSlice())
	require.NoError(t, err)

	waitFor(t, plr, func(e poller.Event) bool { return e.Readable })
	res := p.HandleReadable(testMagic, 0xDEAD)
	// "ping" arrives before handshake completes, so it is protocol
	// misbehavior: the peer is disconnected, not handed a passthrough.
	require.True(t, res.Disconnect)
	kind, ok := KindOf(res.DisconnectErr)
	require.True(t, ok)
	require.Equal(t, KindMisbehaving, kind)
}

func TestPeerHandleReadableReturnsEmptyOnNoData(t *testing.T) {
	_, p, _ := listenAndDial(t)
	res := p.HandleReadable(testMagic, 1)
	require.False(t, res.Disconnect)
	require.Empty(t, res.Incoming)
}

func TestPeerShutdownIsIdempotent(t *testing.T) {
	_, p, _ := listenAndDial(t)
	p.Shutdown()
	p.Shutdown()
}
