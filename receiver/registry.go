package receiver

import (
	"net/netip"

	"github.com/nettrace-go/nettrace/wireformat"
)

// Key is the correlation key used to route a reply: a probe kind paired with
// the 16-bit identifier the receiver extracts from inbound messages.
type Key struct {
	Kind       wireformat.ProbeKind
	Identifier uint16
}

// Delivery is handed to exactly one waiter; there is no broadcast
// invariant.
type Delivery struct {
	Peer    netip.Addr
	Raw     []byte
	Message wireformat.Message
}

// ErrAlreadyRegistered is returned by Register when the requested key
// collides with a live registration.
type ErrAlreadyRegistered struct {
	Key Key
}

func (e *ErrAlreadyRegistered) Error() string {
	return "receiver: key already registered"
}
