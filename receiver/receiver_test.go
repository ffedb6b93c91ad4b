package receiver

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettrace-go/nettrace/wireformat"
)

func withShortGrace(t *testing.T) {
	origDuration, origPurge, origPoll := graceDuration, gracePurgeInterval, readPollInterval
	graceDuration = 80 * time.Millisecond
	gracePurgeInterval = 10 * time.Millisecond
	readPollInterval = 5 * time.Millisecond
	t.Cleanup(func() {
		graceDuration, gracePurgeInterval, readPollInterval = origDuration, origPurge, origPoll
	})
}

func withMockConn(t *testing.T) *MockWireConn {
	ctrl := gomock.NewController(t)
	mock := NewMockWireConn(ctrl)
	orig := ConnFactory
	ConnFactory = func(wireformat.Family) (Conn, error) { return mock, nil }
	t.Cleanup(func() { ConnFactory = orig })

	// the drain loop polls continuously; let ReadFrom block/timeout by
	// default so tests don't spin a CPU-bound loop.
	mock.EXPECT().SetReadDeadline(gomock.Any()).Return(nil).AnyTimes()
	mock.EXPECT().ReadFrom(gomock.Any()).Return(0, nil, &net.OpError{Err: errTimeout{}}).AnyTimes()
	mock.EXPECT().Close().Return(nil).AnyTimes()
	return mock
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }

func TestRegisterUnregisterRoundtrip(t *testing.T) {
	withShortGrace(t)
	withMockConn(t)

	r, err := newReceiver(wireformat.V4, func() {})
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Register(wireformat.KindEcho, 0x1234)
	require.NoError(t, err)
	assert.NotNil(t, ch)

	_, err = r.Register(wireformat.KindEcho, 0x1234)
	var already *ErrAlreadyRegistered
	assert.ErrorAs(t, err, &already)

	r.Unregister(wireformat.KindEcho, 0x1234)

	// registering again after unregister must succeed: freeing a key
	// makes it immediately reusable.
	ch2, err := r.Register(wireformat.KindEcho, 0x1234)
	require.NoError(t, err)
	assert.NotNil(t, ch2)
	r.Unregister(wireformat.KindEcho, 0x1234)
}

func TestNoBroadcastDeliversToExactlyOneWaiter(t *testing.T) {
	withShortGrace(t)
	withMockConn(t)

	r, err := newReceiver(wireformat.V4, func() {})
	require.NoError(t, err)
	defer r.Close()

	chA, err := r.Register(wireformat.KindEcho, 1)
	require.NoError(t, err)
	chB, err := r.Register(wireformat.KindEcho, 2)
	require.NoError(t, err)
	chC, err := r.Register(wireformat.KindEcho, 3)
	require.NoError(t, err)

	r.deliver(Key{Kind: wireformat.KindEcho, Identifier: 2}, Delivery{})

	select {
	case <-chB:
	case <-time.After(time.Second):
		t.Fatal("expected delivery to chB")
	}

	select {
	case <-chA:
		t.Fatal("chA should not have received anything")
	case <-chC:
		t.Fatal("chC should not have received anything")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestGraceTimerClosesReceiverAfterLastUnregister(t *testing.T) {
	withShortGrace(t)
	mock := withMockConn(t)
	mock.EXPECT().SetHopLimit(gomock.Any()).Return(nil).AnyTimes()

	closed := make(chan struct{})
	r, err := newReceiver(wireformat.V4, func() { close(closed) })
	require.NoError(t, err)

	_, err = r.Register(wireformat.KindEcho, 42)
	require.NoError(t, err)
	assert.Equal(t, stateRunning, r.State())

	r.Unregister(wireformat.KindEcho, 42)
	assert.Equal(t, stateDraining, r.State())

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("receiver did not close after grace window elapsed")
	}
	assert.Equal(t, stateClosed, r.State())
}

func TestNewRegistrationCancelsPendingShutdown(t *testing.T) {
	withShortGrace(t)
	withMockConn(t)

	r, err := newReceiver(wireformat.V4, func() {})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Register(wireformat.KindEcho, 1)
	require.NoError(t, err)
	r.Unregister(wireformat.KindEcho, 1)
	assert.Equal(t, stateDraining, r.State())

	_, err = r.Register(wireformat.KindEcho, 2)
	require.NoError(t, err)
	assert.Equal(t, stateRunning, r.State())

	// well past the original grace window: receiver must still be alive.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, stateRunning, r.State())
	r.Unregister(wireformat.KindEcho, 2)
}

func TestSendSetsHopLimitThenWrites(t *testing.T) {
	withShortGrace(t)
	mock := withMockConn(t)

	var gotLimit int
	mock.EXPECT().SetHopLimit(gomock.Any()).DoAndReturn(func(limit int) error {
		gotLimit = limit
		return nil
	})
	mock.EXPECT().WriteTo(gomock.Any(), gomock.Any()).Return(0, nil)

	r, err := newReceiver(wireformat.V4, func() {})
	require.NoError(t, err)
	defer r.Close()

	dest := netip.MustParseAddr("192.0.2.1")
	err = r.Send(5, []byte{1, 2, 3}, dest)
	require.NoError(t, err)
	assert.Equal(t, 5, gotLimit)
}
