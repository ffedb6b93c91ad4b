package wireformat

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// SplitReceivedIPv4 strips the variable-length IPv4 header a v4 raw
// datagram socket delivers along with its payload, returning the bare
// ICMP message and the header's source address. v4 datagram raw sockets
// hand the caller the full IP header; v6 ones do not, so the receiver
// takes a v6 source address from the socket's peer address instead.
func SplitReceivedIPv4(buf []byte) (payload []byte, src netip.Addr, err error) {
	var ip4 layers.IPv4
	if err := (&ip4).DecodeFromBytes(buf, gopacket.NilDecodeFeedback); err != nil {
		return nil, netip.Addr{}, fmt.Errorf("wireformat: failed to decode received IPv4 header: %w", err)
	}
	addr, ok := netip.AddrFromSlice(ip4.SrcIP.To4())
	if !ok {
		return nil, netip.Addr{}, fmt.Errorf("wireformat: invalid source address in IPv4 header")
	}
	return ip4.Payload, addr, nil
}
