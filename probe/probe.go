// Package probe implements C3: the three probe-sender flavors (echo,
// datagram, stream) that share a common allocate/register/transmit/await/
// cleanup skeleton over the address-family receiver singleton.
package probe

import (
	"context"
	"math/rand"
	"net/netip"
	"time"

	"github.com/pkg/errors"

	"github.com/nettrace-go/nettrace/receiver"
	"github.com/nettrace-go/nettrace/wireformat"
)

var errTooManyCollisions = errors.New("probe: could not allocate an unused correlation identifier")

// errUnsupportedSockaddr is returned when a raw socket reports a local
// address family this engine does not understand.
var errUnsupportedSockaddr = errors.New("probe: unsupported socket address type")

// Options describes the fixed parameters of a probe: everything that does
// not change between retries of the same hop.
type Options struct {
	Kind     wireformat.ProbeKind
	Family   wireformat.Family
	Dest     netip.Addr
	DestPort uint16
}

// Outcome is the result of one probe send/await cycle.
type Outcome struct {
	Kind    wireformat.ProbeKind
	TTL     uint8
	Elapsed time.Duration

	// Peer is the address that answered, populated when a message was
	// routed back or a stream handshake completed.
	Peer netip.Addr
	// Message is the decoded echo/error message, populated when a
	// message was routed back by the receiver.
	Message wireformat.Message

	// Reached is true when this probe's outcome indicates the
	// destination itself answered.
	Reached bool
	// TimedOut is true when no message arrived before the timeout.
	TimedOut bool
	// Err is set when the probe aborted on an unrecoverable error.
	Err error
}

const defaultDatagramPort = 33434
const defaultStreamPort = 80

// Run executes a single probe at ttl and returns once it has an outcome,
// a timeout, or a hard error. ctx bounds the overall wait; the
// orchestrator passes a ctx capped at timeout plus one second plus the
// hop's total stagger.
func Run(ctx context.Context, opts Options, ttl uint8, timeout time.Duration) Outcome {
	switch opts.Kind {
	case wireformat.KindDatagram:
		return runDatagram(ctx, opts, ttl, timeout)
	case wireformat.KindStream:
		return runStream(ctx, opts, ttl, timeout)
	default:
		return runEcho(ctx, opts, ttl, timeout)
	}
}

// registerEcho allocates a random 16-bit identifier and registers it with
// the shared receiver, retrying on collision.
func registerEcho(r *receiver.Receiver) (uint16, <-chan receiver.Delivery, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id := uint16(rand.Uint32())
		ch, err := r.Register(wireformat.KindEcho, id)
		if err == nil {
			return id, ch, nil
		}
		if _, ok := err.(*receiver.ErrAlreadyRegistered); !ok {
			return 0, nil, err
		}
	}
	return 0, nil, errTooManyCollisions
}
