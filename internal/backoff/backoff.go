// internal/backoff/backoff.go
// ---------------------------
// Exponential backoff with jitter for the retry loop. Delays grow as
// base * 2^attempt, get a uniform random spread added on top so concurrent
// clients don't re-send in lockstep, and are capped at max.
package backoff

import (
	"math/rand"
	"time"
)

// jitterFraction bounds the random spread at 10% of the exponential term.
const jitterFraction = 0.1

// Delay returns the pause before re-dispatching attempt n (0-based).
func Delay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30 // keeps the shift from overflowing
	}

	term := base << uint(attempt)
	if term <= 0 || term >= max {
		// Overflowed or already past the cap; jitter can only push higher.
		return max
	}

	d := term + time.Duration(jitterFraction*rand.Float64()*float64(term))
	if d > max {
		d = max
	}
	return d
}
