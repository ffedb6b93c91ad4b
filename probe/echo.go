package probe

import (
	"context"
	"net/netip"
	"time"

	"github.com/pkg/errors"

	"github.com/nettrace-go/nettrace/receiver"
	"github.com/nettrace-go/nettrace/wireformat"
)

// runEcho implements the echo probe flavor: it has no
// send-socket of its own, it shares the family receiver's.
func runEcho(ctx context.Context, opts Options, ttl uint8, timeout time.Duration) Outcome {
	rcv, err := receiver.GetOrStart(opts.Family)
	if err != nil {
		return Outcome{Kind: wireformat.KindEcho, TTL: ttl, Err: err}
	}

	id, ch, err := registerEcho(rcv)
	if err != nil {
		return Outcome{Kind: wireformat.KindEcho, TTL: ttl, Err: err}
	}
	defer rcv.Unregister(wireformat.KindEcho, id)

	sequence := uint16(ttl)
	packet := wireformat.EncodeEchoRequest(opts.Family, id, sequence, nil)

	start := time.Now()
	if err := rcv.Send(int(ttl), packet, opts.Dest); err != nil {
		return Outcome{Kind: wireformat.KindEcho, TTL: ttl, Err: errors.Wrap(err, "probe: failed to send echo request")}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-ch:
		return echoOutcome(ttl, opts.Dest, start, d)
	case <-timer.C:
		return Outcome{Kind: wireformat.KindEcho, TTL: ttl, Elapsed: time.Since(start), TimedOut: true}
	case <-ctx.Done():
		return Outcome{Kind: wireformat.KindEcho, TTL: ttl, Elapsed: time.Since(start), Err: ctx.Err()}
	}
}

func echoOutcome(ttl uint8, dest netip.Addr, start time.Time, d receiver.Delivery) Outcome {
	o := Outcome{
		Kind:    wireformat.KindEcho,
		TTL:     ttl,
		Elapsed: time.Since(start),
		Peer:    d.Peer,
		Message: d.Message,
	}
	if d.Message.Type == wireformat.TypeEchoReply && d.Peer == dest {
		o.Reached = true
	} else if d.Message.Type == wireformat.TypeDestinationUnreachable {
		o.Reached = true
	}
	return o
}
