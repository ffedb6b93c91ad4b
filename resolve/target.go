// Package resolve implements the C5 boundary adapters: turning a
// caller-supplied target string into an address of the right family,
// reverse-looking-up addresses for display, and rendering a trace to a
// human-readable console form.
package resolve

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/nettrace-go/nettrace/wireformat"
)

// Target resolves raw to an address. If raw already parses as a numeric
// address, no lookup occurs and the family is derived from the address
// itself, overriding preferred. Otherwise raw is treated as a hostname and
// resolved via DNS, filtered to preferred's family.
func Target(raw string, preferred wireformat.Family) (netip.Addr, wireformat.Family, error) {
	if addr, err := netip.ParseAddr(raw); err == nil {
		addr = addr.Unmap()
		family := wireformat.V4
		if addr.Is6() {
			family = wireformat.V6
		}
		return addr, family, nil
	}

	ips, err := net.LookupIP(raw)
	if err != nil {
		return netip.Addr{}, preferred, fmt.Errorf("failed to resolve host %q: %w", raw, err)
	}

	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if preferred == wireformat.V6 && addr.Is6() {
			return addr, preferred, nil
		}
		if preferred == wireformat.V4 && addr.Is4() {
			return addr, preferred, nil
		}
	}

	return netip.Addr{}, preferred, fmt.Errorf("failed to resolve host %q to an %s address", raw, preferred)
}
