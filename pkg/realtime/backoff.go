package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Reconnect defaults: 1s, 2s, 4s, 8s, 16s, then capped at 30s, for at most
// ten attempts before the connection is reported lost.
const (
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second
	DefaultMaxAttempts = 10
)

// newBackoffPolicy builds the reconnect delay policy: base doubled per
// attempt, capped, with no jitter so the schedule is predictable. Attempt
// counting is done by the caller; the policy never stops on its own.
func newBackoffPolicy(base, cap time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.MaxInterval = cap
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
