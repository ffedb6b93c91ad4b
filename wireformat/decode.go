package wireformat

import (
	"encoding/binary"
	"fmt"
)

// Decode parses raw echo/error message bytes. raw is the bare ICMP/ICMPv6
// message; the IP header, if any, must already have been split off by the
// receive-path (see SplitReceivedIPv4).
func Decode(family Family, raw []byte) (Message, error) {
	if len(raw) < 4 {
		return Message{}, fmt.Errorf("wireformat: message too short: %d bytes", len(raw))
	}

	rawType := raw[0]
	code := raw[1]
	normalized := normalizeType(family, rawType)

	switch normalized {
	case icmpv4EchoReply:
		if len(raw) < 8 {
			return Message{}, fmt.Errorf("wireformat: echo reply too short: %d bytes", len(raw))
		}
		return Message{
			Type:       TypeEchoReply,
			Code:       code,
			Identifier: binary.BigEndian.Uint16(raw[4:6]),
			Sequence:   binary.BigEndian.Uint16(raw[6:8]),
			Payload:    raw[8:],
		}, nil

	case icmpv4TimeExceeded:
		if len(raw) < 8 {
			return Message{}, fmt.Errorf("wireformat: time exceeded too short: %d bytes", len(raw))
		}
		embedded, err := parseEmbeddedHeader(family, raw[8:])
		if err != nil {
			return Message{}, err
		}
		return Message{Type: TypeTimeExceeded, Code: code, Embedded: embedded}, nil

	case icmpv4DestUnreach:
		if len(raw) < 8 {
			return Message{}, fmt.Errorf("wireformat: dest unreachable too short: %d bytes", len(raw))
		}
		embedded, err := parseEmbeddedHeader(family, raw[8:])
		if err != nil {
			return Message{}, err
		}
		return Message{Type: TypeDestinationUnreachable, Code: code, Embedded: embedded}, nil

	default:
		payload := []byte{}
		if len(raw) > 4 {
			payload = raw[4:]
		}
		return Message{Type: TypeOther, Code: code, RawType: rawType, RawPayload: payload}, nil
	}
}
