// Package payload implements the application-level payloads carried
// inside a framed network.Message: version, verack, and ping/pong.
package payload

import (
	"encoding/binary"
	"fmt"
	"net"
)

// NetAddr is the fixed-size address record embedded in a Version message,
// per the Bitcoin wire format: services (8 bytes) || IP (16 bytes, v4
// mapped into v6) || port (2 bytes, big-endian).
type NetAddr struct {
	Services uint64
	IP       net.IP
	Port     uint16
}

// NewNetAddr builds a NetAddr for addr (host:port form) with the given
// service bitmask. An empty addr, or one SplitHostPort rejects, yields a
// NetAddr with the given services, the unspecified IPv4 address and port
// 0, the wire format's fallback for an unknown local address.
func NewNetAddr(addr string, services uint64) NetAddr {
	na := NetAddr{Services: services, IP: net.IPv4zero.To16()}
	if addr == "" {
		return na
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return na
	}
	if ip := net.ParseIP(host); ip != nil {
		na.IP = ip.To16()
	}
	var port uint16
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	na.Port = port
	return na
}

const netAddrSize = 8 + 16 + 2

func (a NetAddr) encode() []byte {
	out := make([]byte, netAddrSize)
	binary.LittleEndian.PutUint64(out[0:8], a.Services)
	ip := a.IP.To16()
	if ip == nil {
		ip = net.IPv6zero
	}
	copy(out[8:24], ip)
	binary.BigEndian.PutUint16(out[24:26], a.Port)
	return out
}

func decodeNetAddr(b []byte) (NetAddr, error) {
	if len(b) < netAddrSize {
		return NetAddr{}, fmt.Errorf("payload: short net addr")
	}
	return NetAddr{
		Services: binary.LittleEndian.Uint64(b[0:8]),
		IP:       append(net.IP(nil), b[8:24]...),
		Port:     binary.BigEndian.Uint16(b[24:26]),
	}, nil
}
