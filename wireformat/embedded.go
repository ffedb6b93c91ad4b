package wireformat

import "encoding/binary"

// parseEmbeddedHeader parses the embedded original IP header and the
// first 8 bytes of its transport header, following the "Embedded IP
// header parsing" and "Embedded transport parsing" steps. Only the first
// 8 bytes of the original transport header are guaranteed to have
// survived in the error message, so this never looks past that.
func parseEmbeddedHeader(family Family, buf []byte) (EmbeddedHeader, error) {
	transport, numericProto, ok := splitEmbeddedIPHeader(family, buf)
	if !ok {
		return EmbeddedHeader{Proto: EmbeddedUnknown}, nil
	}

	proto := embeddedProtoFromNumber(family, numericProto)
	header := EmbeddedHeader{Proto: proto, NumericProto: numericProto}

	switch proto {
	case EmbeddedEcho:
		if len(transport) < 8 {
			return header, nil
		}
		header.Identifier = binary.BigEndian.Uint16(transport[4:6])
		header.Sequence = binary.BigEndian.Uint16(transport[6:8])
	case EmbeddedDatagram:
		if len(transport) < 2 {
			return header, nil
		}
		header.Identifier = binary.BigEndian.Uint16(transport[0:2])
	case EmbeddedStream:
		if len(transport) < 2 {
			return header, nil
		}
		header.Identifier = binary.BigEndian.Uint16(transport[0:2])
	}
	return header, nil
}

// splitEmbeddedIPHeader strips the embedded IP header off the front of buf
// and returns the transport bytes that follow plus the embedded protocol
// number. ok is false when buf is too short for the embedded IP header
// (under 40 bytes for v6; under 10 bytes, or shorter than its header-length
// field, for v4), in which case the caller reports the protocol as unknown;
// the bytes after the error header are not kept in the decoded message.
func splitEmbeddedIPHeader(family Family, buf []byte) (transport []byte, proto uint8, ok bool) {
	if family == V6 {
		const ipv6HeaderLen = 40
		if len(buf) < ipv6HeaderLen {
			return buf, 0, false
		}
		return buf[ipv6HeaderLen:], buf[6], true
	}

	if len(buf) < 10 {
		return buf, 0, false
	}
	headerLen := int(buf[0]&0x0f) * 4
	if headerLen < 1 || headerLen > len(buf) {
		return buf, 0, false
	}
	return buf[headerLen:], buf[9], true
}

func embeddedProtoFromNumber(family Family, n uint8) EmbeddedProto {
	switch n {
	case 1: // ICMP
		return EmbeddedEcho
	case 6: // TCP
		return EmbeddedStream
	case 17: // UDP
		return EmbeddedDatagram
	case 58: // ICMPv6
		if family == V6 {
			return EmbeddedEcho
		}
		return EmbeddedNumeric
	default:
		return EmbeddedNumeric
	}
}
