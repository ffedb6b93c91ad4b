package trace

import (
	"time"

	"github.com/nettrace-go/nettrace/wireformat"
)

// Options controls a single Run call. Zero-value fields take the defaults
// listed in the library entry's option table.
type Options struct {
	Kind           wireformat.ProbeKind
	Family         wireformat.Family
	MaxHops        int
	MaxRetries     int
	TimeoutSeconds int
	ProbesPerHop   int
	MinTTL         int
	PrintOutput    *bool

	// CollectSourcePublicIP performs the best-effort public-source-address
	// enrichment after the trace completes.
	CollectSourcePublicIP bool
	// ReverseDNSLookup populates Hop.Names with reverse-lookup results for
	// every source address that answered.
	ReverseDNSLookup bool
	// DestinationPort is the port datagram/stream probes target. Zero
	// selects the per-kind default.
	DestinationPort uint16
}

const (
	defaultMaxHops        = 20
	defaultMaxRetries     = 3
	defaultTimeoutSeconds = 1
	defaultProbesPerHop   = 3
	defaultMinTTL         = 1
	probeStagger          = 50 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.MaxHops == 0 {
		o.MaxHops = defaultMaxHops
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.TimeoutSeconds == 0 {
		o.TimeoutSeconds = defaultTimeoutSeconds
	}
	if o.ProbesPerHop == 0 {
		o.ProbesPerHop = defaultProbesPerHop
	}
	if o.MinTTL == 0 {
		o.MinTTL = defaultMinTTL
	}
	return o
}

func (o Options) printOutput() bool {
	if o.PrintOutput == nil {
		return true
	}
	return *o.PrintOutput
}

func (o Options) timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}
