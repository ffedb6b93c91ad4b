package probe

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/nettrace-go/nettrace/receiver"
	"github.com/nettrace-go/nettrace/wireformat"
)

// datagramPayload is sent as the UDP body. Its content is irrelevant to
// the probe, but a non-empty, recognizable body makes captures easier to
// read while debugging.
var datagramPayload = []byte("nettrace")

// runDatagram implements the UDP probe flavor: its own
// send-socket, bound to an ephemeral port that doubles as the
// correlation identifier.
func runDatagram(ctx context.Context, opts Options, ttl uint8, timeout time.Duration) Outcome {
	rcv, err := receiver.GetOrStart(opts.Family)
	if err != nil {
		return Outcome{Kind: wireformat.KindDatagram, TTL: ttl, Err: err}
	}

	conn, localPort, ch, err := registerDatagram(rcv, opts.Family, int(ttl))
	if err != nil {
		return Outcome{Kind: wireformat.KindDatagram, TTL: ttl, Err: err}
	}
	defer conn.Close()
	defer rcv.Unregister(wireformat.KindDatagram, localPort)

	destPort := opts.DestPort
	if destPort == 0 {
		destPort = defaultDatagramPort
	}
	dest := &net.UDPAddr{IP: opts.Dest.AsSlice(), Port: int(destPort)}

	start := time.Now()
	if _, err := conn.WriteTo(datagramPayload, dest); err != nil {
		return Outcome{Kind: wireformat.KindDatagram, TTL: ttl, Err: errors.Wrap(err, "probe: failed to send datagram probe")}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-ch:
		return datagramOutcome(ttl, opts.Dest, start, d)
	case <-timer.C:
		return Outcome{Kind: wireformat.KindDatagram, TTL: ttl, Elapsed: time.Since(start), TimedOut: true}
	case <-ctx.Done():
		return Outcome{Kind: wireformat.KindDatagram, TTL: ttl, Elapsed: time.Since(start), Err: ctx.Err()}
	}
}

// registerDatagram opens an OS-assigned ephemeral UDP socket and registers
// its local port as the correlation identifier, retrying with a fresh
// socket if that port collides with an identifier already registered.
func registerDatagram(rcv *receiver.Receiver, family wireformat.Family, ttl int) (net.PacketConn, uint16, <-chan receiver.Delivery, error) {
	network := "udp4"
	bindAddr := "0.0.0.0:0"
	if family == wireformat.V6 {
		network = "udp6"
		bindAddr = "[::]:0"
	}

	for attempt := 0; attempt < 8; attempt++ {
		conn, err := net.ListenPacket(network, bindAddr)
		if err != nil {
			return nil, 0, nil, errors.Wrap(err, "probe: failed to open datagram socket")
		}
		if err := setDatagramHopLimit(family, conn, ttl); err != nil {
			conn.Close()
			return nil, 0, nil, errors.Wrap(err, "probe: failed to set datagram hop limit")
		}

		localPort := uint16(conn.LocalAddr().(*net.UDPAddr).Port)
		ch, err := rcv.Register(wireformat.KindDatagram, localPort)
		if err == nil {
			return conn, localPort, ch, nil
		}
		conn.Close()
		if _, ok := err.(*receiver.ErrAlreadyRegistered); !ok {
			return nil, 0, nil, err
		}
	}
	return nil, 0, nil, errTooManyCollisions
}

func setDatagramHopLimit(family wireformat.Family, conn net.PacketConn, ttl int) error {
	if family == wireformat.V6 {
		return ipv6.NewPacketConn(conn).SetHopLimit(ttl)
	}
	return ipv4.NewPacketConn(conn).SetTTL(ttl)
}

func datagramOutcome(ttl uint8, dest netip.Addr, start time.Time, d receiver.Delivery) Outcome {
	o := Outcome{
		Kind:    wireformat.KindDatagram,
		TTL:     ttl,
		Elapsed: time.Since(start),
		Peer:    d.Peer,
		Message: d.Message,
	}
	// a port-unreachable destination-unreachable from the target is the
	// expected "reached" signal for UDP probing; any correlated
	// destination-unreachable already implies the embedded datagram
	// reached the target.
	if d.Message.Type == wireformat.TypeDestinationUnreachable {
		o.Reached = true
	}
	return o
}
