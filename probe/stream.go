//go:build unix

package probe

import (
	"context"
	"net/netip"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/nettrace-go/nettrace/receiver"
	"github.com/nettrace-go/nettrace/wireformat"
)

// runStream implements the TCP-handshake probe flavor. Unlike
// echo and datagram, the kernel never hands this probe an error message
// through a normal read: a non-blocking connect's outcome is reported as
// socket readiness plus SO_ERROR, so this probe polls its own socket for
// writability alongside waiting on the receiver channel.
func runStream(ctx context.Context, opts Options, ttl uint8, timeout time.Duration) Outcome {
	rcv, err := receiver.GetOrStart(opts.Family)
	if err != nil {
		return Outcome{Kind: wireformat.KindStream, TTL: ttl, Err: err}
	}

	fd, localPort, ch, err := registerStream(rcv, opts.Family, int(ttl))
	if err != nil {
		return Outcome{Kind: wireformat.KindStream, TTL: ttl, Err: err}
	}
	defer unix.Close(fd)
	defer rcv.Unregister(wireformat.KindStream, localPort)

	destPort := opts.DestPort
	if destPort == 0 {
		destPort = defaultStreamPort
	}

	start := time.Now()
	connErr := connectNonblocking(fd, opts.Family, opts.Dest, destPort)
	if connErr != nil && connErr != unix.EINPROGRESS {
		return Outcome{Kind: wireformat.KindStream, TTL: ttl, Elapsed: time.Since(start), Err: errors.Wrap(connErr, "probe: failed to connect stream socket")}
	}

	stopPoll := make(chan struct{})
	defer close(stopPoll)
	connectCh := pollConnectReady(fd, stopPoll)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case cerr := <-connectCh:
			connectCh = nil
			if outcome, done := streamConnectOutcome(ttl, start, cerr); done {
				if outcome.Reached {
					outcome.Peer = opts.Dest
				}
				return outcome
			}
		case d := <-ch:
			return streamMessageOutcome(ttl, start, d)
		case <-timer.C:
			return Outcome{Kind: wireformat.KindStream, TTL: ttl, Elapsed: time.Since(start), TimedOut: true}
		case <-ctx.Done():
			return Outcome{Kind: wireformat.KindStream, TTL: ttl, Elapsed: time.Since(start), Err: ctx.Err()}
		}
	}
}

// registerStream opens a non-blocking stream socket bound to an
// OS-assigned ephemeral port and registers that port as the correlation
// identifier, retrying with a fresh socket on a collision.
func registerStream(rcv *receiver.Receiver, family wireformat.Family, ttl int) (int, uint16, <-chan receiver.Delivery, error) {
	domain := unix.AF_INET
	if family == wireformat.V6 {
		domain = unix.AF_INET6
	}

	for attempt := 0; attempt < 8; attempt++ {
		fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
		if err != nil {
			return 0, 0, nil, errors.Wrap(err, "probe: failed to open stream socket")
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			return 0, 0, nil, errors.Wrap(err, "probe: failed to set socket nonblocking")
		}
		if err := bindEphemeral(fd, family); err != nil {
			unix.Close(fd)
			return 0, 0, nil, errors.Wrap(err, "probe: failed to bind stream socket")
		}
		if err := setStreamHopLimit(fd, family, ttl); err != nil {
			unix.Close(fd)
			return 0, 0, nil, errors.Wrap(err, "probe: failed to set stream hop limit")
		}

		localPort, err := localStreamPort(fd, family)
		if err != nil {
			unix.Close(fd)
			return 0, 0, nil, errors.Wrap(err, "probe: failed to read local stream port")
		}

		ch, err := rcv.Register(wireformat.KindStream, localPort)
		if err == nil {
			return fd, localPort, ch, nil
		}
		unix.Close(fd)
		if _, ok := err.(*receiver.ErrAlreadyRegistered); !ok {
			return 0, 0, nil, err
		}
	}
	return 0, 0, nil, errTooManyCollisions
}

func bindEphemeral(fd int, family wireformat.Family) error {
	if family == wireformat.V6 {
		return unix.Bind(fd, &unix.SockaddrInet6{Port: 0})
	}
	return unix.Bind(fd, &unix.SockaddrInet4{Port: 0})
}

func setStreamHopLimit(fd int, family wireformat.Family, ttl int) error {
	if family == wireformat.V6 {
		return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl)
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, ttl)
}

func localStreamPort(fd int, family wireformat.Family) (uint16, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return uint16(a.Port), nil
	case *unix.SockaddrInet6:
		return uint16(a.Port), nil
	default:
		return 0, errUnsupportedSockaddr
	}
}

func connectNonblocking(fd int, family wireformat.Family, dest netip.Addr, port uint16) error {
	if family == wireformat.V6 {
		return unix.Connect(fd, &unix.SockaddrInet6{Port: int(port), Addr: dest.As16()})
	}
	return unix.Connect(fd, &unix.SockaddrInet4{Port: int(port), Addr: dest.As4()})
}

// pollConnectReady polls fd for writability in short slices so stop can
// interrupt it promptly, and resolves the connect outcome via SO_ERROR
// once the socket becomes writable.
func pollConnectReady(fd int, stop <-chan struct{}) <-chan error {
	out := make(chan error, 1)
	go func() {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		for {
			select {
			case <-stop:
				return
			default:
			}
			n, err := unix.Poll(fds, 100)
			if err != nil {
				if err == unix.EINTR {
					continue
				}
				out <- err
				return
			}
			if n > 0 {
				out <- soError(fd)
				return
			}
		}
	}()
	return out
}

func soError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

// streamConnectOutcome interprets a resolved connect attempt. done is
// false when the caller should keep waiting for a routed error message
// or the timeout.
func streamConnectOutcome(ttl uint8, start time.Time, cerr error) (Outcome, bool) {
	base := Outcome{Kind: wireformat.KindStream, TTL: ttl, Elapsed: time.Since(start)}
	switch cerr {
	case nil:
		base.Reached = true
		return base, true
	case unix.ECONNREFUSED, unix.ECONNRESET:
		base.Reached = true
		return base, true
	case unix.EHOSTUNREACH, unix.ENETUNREACH, unix.ETIMEDOUT:
		return Outcome{}, false
	default:
		base.Err = errors.Wrap(cerr, "probe: stream connect failed")
		return base, true
	}
}

func streamMessageOutcome(ttl uint8, start time.Time, d receiver.Delivery) Outcome {
	o := Outcome{
		Kind:    wireformat.KindStream,
		TTL:     ttl,
		Elapsed: time.Since(start),
		Peer:    d.Peer,
		Message: d.Message,
	}
	if d.Message.Type == wireformat.TypeDestinationUnreachable {
		o.Reached = true
	}
	return o
}
