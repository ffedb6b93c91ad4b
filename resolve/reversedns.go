package resolve

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"
)

const reverseLookupTimeout = 5 * time.Second

// LookupAddrFn is defined as a variable to ease testing.
var LookupAddrFn = net.DefaultResolver.LookupAddr

// ReverseDNS returns the first hostname found for addr, or addr's numeric
// form if the lookup fails or returns nothing.
func ReverseDNS(addr netip.Addr) string {
	names, err := ReverseDNSNames(addr)
	if err != nil || len(names) == 0 {
		return addr.String()
	}
	return names[0]
}

// ReverseDNSNames returns every hostname found for addr, trailing dots
// trimmed.
func ReverseDNSNames(addr netip.Addr) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), reverseLookupTimeout)
	defer cancel()

	raw, err := LookupAddrFn(ctx, addr.String())
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(raw))
	for _, name := range raw {
		names = append(names, strings.TrimRight(name, "."))
	}
	return names, nil
}
