package result

import (
	"net/netip"
	"time"

	"github.com/nettrace-go/nettrace/wireformat"
)

// HopKind tags the outcome of a single hop: reached, intermediate,
// timed out, or errored.
type HopKind int

const (
	// HopReached means this hop's probes establish that the
	// destination answered.
	HopReached HopKind = iota
	// HopIntermediate means at least one probe got a reply from a
	// router short of the destination.
	HopIntermediate
	// HopTimeout means every probe at this hop timed out on every
	// retry attempt.
	HopTimeout
	// HopError means a non-timeout transport error occurred with no
	// successful probe at this hop.
	HopError
)

func (k HopKind) String() string {
	switch k {
	case HopReached:
		return "reached"
	case HopIntermediate:
		return "intermediate"
	case HopTimeout:
		return "timeout"
	case HopError:
		return "error"
	default:
		return "unknown"
	}
}

// ProbeRecord is one successful (non-timeout, non-error) probe outcome
// kept on a Hop.
type ProbeRecord struct {
	Peer    netip.Addr
	Elapsed time.Duration
	Message wireformat.Message
}

// Hop is one TTL's outcome.
type Hop struct {
	TTL    uint8
	Kind   HopKind
	Probes []ProbeRecord

	// Retries is populated for HopTimeout: the number of attempts made
	// at this TTL before giving up.
	Retries int
	// Reason is populated for HopError.
	Reason error

	// Names maps a probe's peer address to its reverse-DNS name, filled
	// in by the boundary adapter when reverse lookup was requested.
	// Empty unless reverse lookup was requested.
	Names map[netip.Addr]string
}

// Trace is the ordered result of a single Run call.
type Trace struct {
	RunID  string
	Target netip.Addr
	Kind   wireformat.ProbeKind
	Family wireformat.Family

	// SourceAddr is the local address probes were sent from.
	SourceAddr netip.Addr
	// PublicSourceAddr is the publicly visible source address as seen
	// by an external service, populated only when enrichment was
	// requested and succeeded.
	PublicSourceAddr netip.Addr

	Hops []Hop

	// Reached is true when the trace terminated on a HopReached hop
	// rather than on hop-cap exhaustion.
	Reached bool
}
