package authgw

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time { return c.now }

// A transient failure long after the consumer started must still be
// retried. The stock policy stops 15 minutes after Reset, which would
// turn the first Redis hiccup of a long-lived process into a shutdown.
func TestRetryPolicy_RetriesAfterLongUptime(t *testing.T) {
	policy := newRetryPolicy()
	clock := &stubClock{now: time.Unix(1700000000, 0)}
	policy.Clock = clock
	policy.Reset()

	clock.now = clock.now.Add(time.Hour)
	assert.NotEqual(t, backoff.Stop, policy.NextBackOff())

	clock.now = clock.now.Add(24 * time.Hour)
	assert.NotEqual(t, backoff.Stop, policy.NextBackOff())
}
