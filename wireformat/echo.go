package wireformat

import "encoding/binary"

const (
	icmpv4EchoRequest  = 8
	icmpv4EchoReply    = 0
	icmpv4DestUnreach  = 3
	icmpv4TimeExceeded = 11

	icmpv6EchoRequest  = 128
	icmpv6EchoReply    = 129
	icmpv6DestUnreach  = 1
	icmpv6PacketTooBig = 2
	icmpv6TimeExceeded = 3
)

// EncodeEchoRequest builds an 8-byte echo header followed by payload and
// fills in the Internet checksum.
func EncodeEchoRequest(family Family, identifier, sequence uint16, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0] = echoRequestType(family)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], 0)
	binary.BigEndian.PutUint16(buf[4:6], identifier)
	binary.BigEndian.PutUint16(buf[6:8], sequence)
	copy(buf[8:], payload)

	cksum := Checksum(buf)
	binary.BigEndian.PutUint16(buf[2:4], cksum)
	return buf
}

func echoRequestType(family Family) byte {
	if family == V6 {
		return icmpv6EchoRequest
	}
	return icmpv4EchoRequest
}

// normalizeType maps a v6 wire type into the v4 namespace so downstream
// decoding only needs one set of type constants. v4 types pass through
// unchanged.
func normalizeType(family Family, rawType uint8) uint8 {
	if family == V4 {
		return rawType
	}
	switch rawType {
	case icmpv6EchoReply:
		return icmpv4EchoReply
	case icmpv6DestUnreach:
		return icmpv4DestUnreach
	case icmpv6PacketTooBig:
		return icmpv4DestUnreach
	case icmpv6TimeExceeded:
		return icmpv4TimeExceeded
	default:
		return rawType
	}
}
