package receiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettrace-go/nettrace/wireformat"
)

func TestGetOrStartSharesOneReceiverThenRestartsAfterGrace(t *testing.T) {
	withShortGrace(t)
	withMockConn(t)
	t.Cleanup(ForceReset)

	r1, err := GetOrStart(wireformat.V4)
	require.NoError(t, err)

	ch1, err := r1.Register(wireformat.KindEcho, 1)
	require.NoError(t, err)

	r2, err := GetOrStart(wireformat.V4)
	require.NoError(t, err)
	assert.Same(t, r1, r2, "a second probe against the same family must share the receiver")

	ch2, err := r2.Register(wireformat.KindDatagram, 2)
	require.NoError(t, err)

	r1.Unregister(wireformat.KindEcho, 1)
	r2.Unregister(wireformat.KindDatagram, 2)
	_ = ch1
	_ = ch2

	require.Eventually(t, func() bool {
		return r1.State() == stateClosed
	}, time.Second, 5*time.Millisecond)

	r3, err := GetOrStart(wireformat.V4)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3, "a probe started after the grace window must get a fresh receiver")
}
