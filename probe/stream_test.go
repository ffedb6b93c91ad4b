//go:build unix

package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestStreamConnectOutcomeSuccessReaches(t *testing.T) {
	out, done := streamConnectOutcome(3, time.Now(), nil)
	assert.True(t, done)
	assert.True(t, out.Reached)
	assert.NoError(t, out.Err)
}

func TestStreamConnectOutcomeRefusedOrResetReaches(t *testing.T) {
	for _, errno := range []error{unix.ECONNREFUSED, unix.ECONNRESET} {
		out, done := streamConnectOutcome(3, time.Now(), errno)
		assert.True(t, done)
		assert.True(t, out.Reached, "errno %v should count as reached", errno)
	}
}

func TestStreamConnectOutcomeUnreachableKeepsWaiting(t *testing.T) {
	for _, errno := range []error{unix.EHOSTUNREACH, unix.ENETUNREACH, unix.ETIMEDOUT} {
		_, done := streamConnectOutcome(3, time.Now(), errno)
		assert.False(t, done, "errno %v must not finish the probe", errno)
	}
}

func TestStreamConnectOutcomeOtherErrorAborts(t *testing.T) {
	out, done := streamConnectOutcome(3, time.Now(), unix.EACCES)
	assert.True(t, done)
	assert.False(t, out.Reached)
	assert.Error(t, out.Err)
}
