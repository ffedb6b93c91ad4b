package trace

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettrace-go/nettrace/probe"
	"github.com/nettrace-go/nettrace/result"
	"github.com/nettrace-go/nettrace/wireformat"
)

func TestCombineReachedIncludesIntermediatesFromSameTTL(t *testing.T) {
	target := netip.MustParseAddr("198.51.100.1")
	router := netip.MustParseAddr("203.0.113.1")

	outcomes := []probe.Outcome{
		{Reached: true, Peer: target, Elapsed: 3 * time.Millisecond},
		{Peer: router, Elapsed: 2 * time.Millisecond},
	}

	hop, retry := combine(3, outcomes, 1, 3)
	require.False(t, retry)
	assert.Equal(t, result.HopReached, hop.Kind)
	assert.Len(t, hop.Probes, 2)
}

func TestCombineIntermediateGroupsDistinctSources(t *testing.T) {
	outcomes := []probe.Outcome{
		{Peer: netip.MustParseAddr("203.0.113.1")},
		{Peer: netip.MustParseAddr("203.0.113.2")},
		{Peer: netip.MustParseAddr("203.0.113.3")},
	}

	hop, retry := combine(2, outcomes, 1, 3)
	require.False(t, retry)
	assert.Equal(t, result.HopIntermediate, hop.Kind)
	assert.Len(t, hop.Probes, 3)
}

func TestCombineAllTimeoutsRetryUntilMaxRetriesThenYieldsTimeout(t *testing.T) {
	allTimedOut := []probe.Outcome{{TimedOut: true}, {TimedOut: true}, {TimedOut: true}}

	_, retry := combine(4, allTimedOut, 1, 3)
	assert.True(t, retry, "attempt 1 of 3 should retry")

	_, retry = combine(4, allTimedOut, 2, 3)
	assert.True(t, retry, "attempt 2 of 3 should retry")

	hop, retry := combine(4, allTimedOut, 3, 3)
	assert.False(t, retry, "attempt 3 of 3 is the last")
	assert.Equal(t, result.HopTimeout, hop.Kind)
	assert.Equal(t, 3, hop.Retries)
}

func TestCombineErrorWithNoSuccessfulProbeYieldsHopError(t *testing.T) {
	boom := assert.AnError
	outcomes := []probe.Outcome{
		{Err: boom},
		{TimedOut: true},
	}

	hop, retry := combine(5, outcomes, 1, 3)
	require.False(t, retry)
	assert.Equal(t, result.HopError, hop.Kind)
	assert.ErrorIs(t, hop.Reason, boom)
}

func TestCombineDestinationWithNoIntermediatesJustDestination(t *testing.T) {
	outcomes := []probe.Outcome{
		{Reached: true, Kind: wireformat.KindDatagram},
	}
	hop, retry := combine(6, outcomes, 1, 3)
	require.False(t, retry)
	assert.Equal(t, result.HopReached, hop.Kind)
	assert.Len(t, hop.Probes, 1)
}
