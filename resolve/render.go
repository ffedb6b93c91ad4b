package resolve

import (
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/nettrace-go/nettrace/result"
)

// Render writes t in the human-readable console form described for C5: one
// line per hop, grouped by distinct source address, with RTTs in
// milliseconds. Timed-out hops render as one `*` per retry attempt.
func Render(w io.Writer, t *result.Trace) error {
	for _, hop := range t.Hops {
		if err := renderHop(w, hop); err != nil {
			return err
		}
	}
	return nil
}

func renderHop(w io.Writer, hop result.Hop) error {
	switch hop.Kind {
	case result.HopTimeout:
		stars := strings.TrimRight(strings.Repeat("* ", hop.Retries), " ")
		if stars == "" {
			stars = "*"
		}
		_, err := fmt.Fprintf(w, "%-3d %s\n", hop.TTL, stars)
		return err
	case result.HopError:
		_, err := fmt.Fprintf(w, "%-3d !%v\n", hop.TTL, hop.Reason)
		return err
	}

	groups, order := groupByPeer(hop)
	for i, peer := range order {
		rtts := groups[peer]
		name := peer.String()
		if hop.Names != nil {
			if n, ok := hop.Names[peer]; ok && n != "" {
				name = n
			}
		}

		prefix := fmt.Sprintf("%-3d ", hop.TTL)
		if i > 0 {
			prefix = "   "
		}

		line := fmt.Sprintf("%s%s (%s)", prefix, name, peer)
		for _, rtt := range rtts {
			line += fmt.Sprintf(" %.3fms", rtt)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// groupByPeer buckets a hop's probe records by source address, preserving
// first-seen order so rendering is deterministic across runs.
func groupByPeer(hop result.Hop) (map[netip.Addr][]float64, []netip.Addr) {
	groups := make(map[netip.Addr][]float64)
	var order []netip.Addr
	for _, p := range hop.Probes {
		if _, seen := groups[p.Peer]; !seen {
			order = append(order, p.Peer)
		}
		groups[p.Peer] = append(groups[p.Peer], float64(p.Elapsed.Microseconds())/1000.0)
	}
	return groups, order
}
