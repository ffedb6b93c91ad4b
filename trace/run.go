// Package trace implements C4, the per-hop orchestrator: staggered
// parallel probing, retry-on-timeout, and outcome combination into an
// ordered trace.
package trace

import (
	"context"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nettrace-go/nettrace/classify"
	"github.com/nettrace-go/nettrace/log"
	"github.com/nettrace-go/nettrace/probe"
	"github.com/nettrace-go/nettrace/publicip"
	"github.com/nettrace-go/nettrace/resolve"
	"github.com/nettrace-go/nettrace/result"
	"github.com/nettrace-go/nettrace/wireformat"
)

// Run resolves target, then probes hop-by-hop until the destination
// answers or the hop cap is reached.
func Run(ctx context.Context, target string, opts Options) (*result.Trace, error) {
	opts = opts.withDefaults()

	addr, family, err := resolve.Target(target, opts.Family)
	if err != nil {
		return nil, &classify.ResolutionError{Host: target, Err: err}
	}

	t := &result.Trace{
		RunID:      result.NewRunID(),
		Target:     addr,
		Kind:       opts.Kind,
		Family:     family,
		SourceAddr: localAddrFor(addr, opts.destPort()),
	}

	log.WithFields(log.Fields{"run_id": t.RunID, "target": addr, "family": family}).Debugf("starting trace")

	popts := probe.Options{
		Kind:     opts.Kind,
		Family:   family,
		Dest:     addr,
		DestPort: opts.DestinationPort,
	}

	for ttl := opts.MinTTL; ttl <= opts.MaxHops; ttl++ {
		hop, err := runHopWithRetries(ctx, popts, uint8(ttl), opts)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return t, classify.Classify(err)
		}

		if opts.ReverseDNSLookup {
			attachNames(&hop)
		}

		t.Hops = append(t.Hops, hop)

		if hop.Kind == result.HopReached {
			t.Reached = true
			break
		}
	}

	if opts.CollectSourcePublicIP {
		if pub, err := publicip.NewFetcher().GetIP(family); err != nil {
			log.Debugf("trace: public IP enrichment failed: %v", err)
		} else {
			t.PublicSourceAddr = pub
		}
	}

	if opts.printOutput() {
		_ = resolve.Render(os.Stdout, t)
	}

	if !t.Reached {
		return t, &classify.Error{Code: classify.CodeMaxHopsExceeded, Message: "max hop count exceeded without reaching destination"}
	}
	return t, nil
}

// runHopWithRetries runs one TTL, repeating the whole hop while every probe
// times out, for at most opts.MaxRetries attempts in total.
func runHopWithRetries(ctx context.Context, popts probe.Options, ttl uint8, opts Options) (result.Hop, error) {
	for attempt := 1; ; attempt++ {
		outcomes := runHop(ctx, popts, ttl, opts.ProbesPerHop, opts.timeout())
		hop, retry := combine(ttl, outcomes, attempt, opts.MaxRetries)
		if !retry {
			return hop, nil
		}
		if ctx.Err() != nil {
			return hop, ctx.Err()
		}
	}
}

// runHop launches count probes at ttl, staggered by probeStagger, and
// waits for all of them.
func runHop(ctx context.Context, popts probe.Options, ttl uint8, count int, timeout time.Duration) []probe.Outcome {
	hopCtx, cancel := context.WithTimeout(ctx, timeout+time.Second+time.Duration(count)*probeStagger)
	defer cancel()

	outcomes := make([]probe.Outcome, count)
	g, gctx := errgroup.WithContext(hopCtx)
	for i := 0; i < count; i++ {
		idx := i
		g.Go(func() error {
			select {
			case <-time.After(time.Duration(idx) * probeStagger):
			case <-gctx.Done():
			}
			outcomes[idx] = probe.Run(gctx, popts, ttl, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// combine partitions one hop's probe outcomes into
// destinations/intermediates/timeouts/errors and fold them into one Hop.
// attempt is the 1-indexed count of tries made so far at ttl; retry is
// true only when every probe timed out and attempts remain.
func combine(ttl uint8, outcomes []probe.Outcome, attempt, maxRetries int) (hop result.Hop, retry bool) {
	var destinations, intermediates, timeouts, errored []probe.Outcome

	for _, o := range outcomes {
		switch {
		case o.Reached:
			destinations = append(destinations, o)
		case o.TimedOut:
			timeouts = append(timeouts, o)
		case o.Err != nil:
			errored = append(errored, o)
		default:
			intermediates = append(intermediates, o)
		}
	}

	switch {
	case len(destinations) > 0:
		return result.Hop{
			TTL:    ttl,
			Kind:   result.HopReached,
			Probes: toProbeRecords(append(destinations, intermediates...)),
		}, false

	case len(intermediates) > 0:
		return result.Hop{
			TTL:    ttl,
			Kind:   result.HopIntermediate,
			Probes: toProbeRecords(intermediates),
		}, false

	case len(timeouts) == len(outcomes):
		if attempt < maxRetries {
			return result.Hop{}, true
		}
		return result.Hop{TTL: ttl, Kind: result.HopTimeout, Retries: maxRetries}, false

	default:
		return result.Hop{TTL: ttl, Kind: result.HopError, Reason: errored[0].Err}, false
	}
}

func toProbeRecords(outcomes []probe.Outcome) []result.ProbeRecord {
	records := make([]result.ProbeRecord, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, result.ProbeRecord{Peer: o.Peer, Elapsed: o.Elapsed, Message: o.Message})
	}
	return records
}

// attachNames reverse-resolves every distinct peer address on hop,
// recording failures as the numeric address.
func attachNames(hop *result.Hop) {
	if len(hop.Probes) == 0 {
		return
	}
	hop.Names = make(map[netip.Addr]string, len(hop.Probes))
	for _, p := range hop.Probes {
		if !p.Peer.IsValid() {
			continue
		}
		if _, ok := hop.Names[p.Peer]; ok {
			continue
		}
		hop.Names[p.Peer] = resolve.ReverseDNS(p.Peer)
	}
}

// localAddrFor opens and immediately discards a UDP "connection" to dest
// purely to let the kernel pick the outbound interface/source address.
func localAddrFor(dest netip.Addr, port uint16) netip.Addr {
	conn, err := net.Dial("udp", net.JoinHostPort(dest.String(), strconv.Itoa(int(port))))
	if err != nil {
		return netip.Addr{}
	}
	defer conn.Close()

	addr, err := netip.ParseAddrPort(conn.LocalAddr().String())
	if err != nil {
		return netip.Addr{}
	}
	return addr.Addr()
}

func (o Options) destPort() uint16 {
	if o.DestinationPort != 0 {
		return o.DestinationPort
	}
	if o.Kind == wireformat.KindStream {
		return 80
	}
	return 33434
}
