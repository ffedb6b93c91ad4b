package resolve

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettrace-go/nettrace/result"
)

func TestRenderReachedHopSingleSource(t *testing.T) {
	trace := &result.Trace{
		Hops: []result.Hop{
			{
				TTL:  3,
				Kind: result.HopReached,
				Probes: []result.ProbeRecord{
					{Peer: netip.MustParseAddr("198.51.100.1"), Elapsed: 12 * time.Millisecond},
					{Peer: netip.MustParseAddr("198.51.100.1"), Elapsed: 14500 * time.Microsecond},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, trace))
	out := buf.String()
	assert.Contains(t, out, "3  ")
	assert.Contains(t, out, "(198.51.100.1)")
	assert.Contains(t, out, "12.000ms")
	assert.Contains(t, out, "14.500ms")
}

func TestRenderIntermediateHopMultipleSourcesOnContinuationLines(t *testing.T) {
	trace := &result.Trace{
		Hops: []result.Hop{
			{
				TTL:  2,
				Kind: result.HopIntermediate,
				Probes: []result.ProbeRecord{
					{Peer: netip.MustParseAddr("203.0.113.1"), Elapsed: 5 * time.Millisecond},
					{Peer: netip.MustParseAddr("203.0.113.2"), Elapsed: 6 * time.Millisecond},
					{Peer: netip.MustParseAddr("203.0.113.3"), Elapsed: 7 * time.Millisecond},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, trace))
	lines := splitLines(buf.String())
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2  ")
	assert.Contains(t, lines[1], "   ")
	assert.Contains(t, lines[2], "   ")
}

func TestRenderTimeoutHopStarsPerRetry(t *testing.T) {
	trace := &result.Trace{
		Hops: []result.Hop{
			{TTL: 4, Kind: result.HopTimeout, Retries: 3},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, trace))
	assert.Contains(t, buf.String(), "* * *")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}
