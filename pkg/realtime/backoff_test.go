package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy_DelaySequence(t *testing.T) {
	policy := newBackoffPolicy(1000*time.Millisecond, 30000*time.Millisecond)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}

	for i, expected := range want {
		assert.Equal(t, expected, policy.NextBackOff(), "attempt %d", i+1)
	}
}

func TestBackoffPolicy_NeverStops(t *testing.T) {
	policy := newBackoffPolicy(time.Millisecond, 4*time.Millisecond)

	// The attempt budget is enforced by the caller, not the policy.
	for i := 0; i < 100; i++ {
		assert.NotEqual(t, time.Duration(-1), policy.NextBackOff())
	}
}
