package trace

import (
	"context"
	"encoding/binary"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettrace-go/nettrace/receiver"
	"github.com/nettrace-go/nettrace/result"
	"github.com/nettrace-go/nettrace/wireformat"
)

// installMockConn wires the receiver singleton to a mock wire transport
// and calls onWrite with each sent packet's echo identifier, so tests can
// react to sent packets by delivering synthetic messages back.
func installMockConn(t *testing.T, onWrite func(identifier uint16)) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mock := receiver.NewMockWireConn(ctrl)

	mock.EXPECT().SetHopLimit(gomock.Any()).Return(nil).AnyTimes()
	mock.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	mock.EXPECT().ReadFrom(gomock.Any()).Return(0, nil, errTimeout{}).AnyTimes()
	mock.EXPECT().Close().Return(nil).AnyTimes()
	mock.EXPECT().WriteTo(gomock.Any(), gomock.Any()).DoAndReturn(
		func(b []byte, _ net.Addr) (int, error) {
			id := binary.BigEndian.Uint16(b[4:6])
			go onWrite(id)
			return len(b), nil
		}).AnyTimes()

	restore := receiver.InstallMockConn(mock)
	t.Cleanup(restore)
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

func TestRunReachesDestinationAtHopThreeEcho(t *testing.T) {
	target := netip.MustParseAddr("198.51.100.1")
	routerA := netip.MustParseAddr("203.0.113.1")
	routerB := netip.MustParseAddr("203.0.113.2")

	var ttl atomic.Int32
	installMockConn(t, func(id uint16) {
		rcv, err := receiver.GetOrStart(wireformat.V4)
		require.NoError(t, err)

		n := ttl.Add(1) - 1
		key := receiver.Key{Kind: wireformat.KindEcho, Identifier: id}
		switch n {
		case 0:
			rcv.DeliverForTest(key, receiver.Delivery{Peer: routerA, Message: wireformat.Message{Type: wireformat.TypeTimeExceeded}})
		case 1:
			rcv.DeliverForTest(key, receiver.Delivery{Peer: routerB, Message: wireformat.Message{Type: wireformat.TypeTimeExceeded}})
		default:
			rcv.DeliverForTest(key, receiver.Delivery{Peer: target, Message: wireformat.Message{Type: wireformat.TypeEchoReply}})
		}
	})

	printOff := false
	opts := Options{
		Kind:           wireformat.KindEcho,
		Family:         wireformat.V4,
		MaxHops:        5,
		ProbesPerHop:   1,
		TimeoutSeconds: 1,
		PrintOutput:    &printOff,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Run(ctx, target.String(), opts)
	require.NoError(t, err)
	require.Len(t, tr.Hops, 3)
	assert.Equal(t, result.HopIntermediate, tr.Hops[0].Kind)
	assert.Equal(t, result.HopIntermediate, tr.Hops[1].Kind)
	assert.Equal(t, result.HopReached, tr.Hops[2].Kind)
	assert.True(t, tr.Reached)
}

// TestRunCrossTalkDoesNotLeakBetweenConcurrentProbes registers two probes
// for the same hop concurrently, delivers a reply keyed to only the
// first-registered identifier, and checks that the reply resolves that
// probe alone: the second probe's own timeout must not be short-circuited
// or otherwise influenced by a message meant for its sibling.
func TestRunCrossTalkDoesNotLeakBetweenConcurrentProbes(t *testing.T) {
	target := netip.MustParseAddr("198.51.100.2")

	seen := make(chan uint16, 8)
	var resolvedID uint16
	var once sync.Once
	installMockConn(t, func(id uint16) {
		seen <- id
		once.Do(func() {
			resolvedID = id
			rcv, err := receiver.GetOrStart(wireformat.V4)
			if err != nil {
				return
			}
			key := receiver.Key{Kind: wireformat.KindEcho, Identifier: id}
			rcv.DeliverForTest(key, receiver.Delivery{Peer: target, Message: wireformat.Message{Type: wireformat.TypeEchoReply}})
		})
	})

	printOff := false
	opts := Options{
		Kind:           wireformat.KindEcho,
		Family:         wireformat.V4,
		MaxHops:        1,
		ProbesPerHop:   2,
		TimeoutSeconds: 1,
		MaxRetries:     1,
		PrintOutput:    &printOff,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tr, err := Run(ctx, target.String(), opts)
	require.NoError(t, err)

	first := <-seen
	second := <-seen
	assert.NotEqual(t, first, second, "two concurrently registered probes must draw distinct identifiers")
	assert.Equal(t, first, resolvedID, "the reply must have been keyed to the first-registered identifier")

	// only the resolved probe should be reflected in the hop: the
	// second, unrelated identifier kept waiting on its own timeout
	// rather than being resolved by the first probe's reply.
	require.Len(t, tr.Hops, 1)
	assert.Equal(t, result.HopReached, tr.Hops[0].Kind)
	require.Len(t, tr.Hops[0].Probes, 1)
	assert.Equal(t, target, tr.Hops[0].Probes[0].Peer)
	assert.True(t, tr.Reached)
}
