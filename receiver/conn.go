package receiver

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/nettrace-go/nettrace/wireformat"
)

// Conn is the shared raw-datagram socket the receiver owns. It is
// satisfied by *realConn in production and by a generated mock
// (mock_conn.go) in tests, so the drain loop and register/send paths can
// be exercised without opening an actual raw socket. Exported so other
// packages' tests can install a mock via ConnFactory.
type Conn interface {
	ReadFrom(buf []byte) (n int, peer net.Addr, err error)
	WriteTo(b []byte, dst net.Addr) (int, error)
	SetHopLimit(limit int) error
	SetReadDeadline(t time.Time) error
	Close() error
}

type realConn struct {
	family wireformat.Family
	pc     *icmp.PacketConn
	v4     *ipv4.PacketConn
	v6     *ipv6.PacketConn
}

// ConnFactory opens the raw socket a new receiver uses. Production code
// never reassigns it; tests override it to inject a mock Conn without
// opening a real raw socket.
var ConnFactory = newConn

func newConn(family wireformat.Family) (Conn, error) {
	network, bindAddr := "ip4:1", "0.0.0.0"
	if family == wireformat.V6 {
		network, bindAddr = "ip6:58", "::"
	}

	pc, err := icmp.ListenPacket(network, bindAddr)
	if err != nil {
		return nil, fmt.Errorf("receiver: failed to open raw socket for %s: %w", family, err)
	}

	rc := &realConn{family: family, pc: pc}
	if family == wireformat.V6 {
		rc.v6 = pc.IPv6PacketConn()
	} else {
		rc.v4 = pc.IPv4PacketConn()
	}
	return rc, nil
}

func (c *realConn) ReadFrom(buf []byte) (int, net.Addr, error) {
	return c.pc.ReadFrom(buf)
}

func (c *realConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	return c.pc.WriteTo(b, dst)
}

func (c *realConn) SetHopLimit(limit int) error {
	if c.family == wireformat.V6 {
		return c.v6.SetHopLimit(limit)
	}
	return c.v4.SetTTL(limit)
}

func (c *realConn) SetReadDeadline(t time.Time) error {
	return c.pc.SetReadDeadline(t)
}

func (c *realConn) Close() error {
	return c.pc.Close()
}
