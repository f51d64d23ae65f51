package svcclient

import (
	"math"
	"time"
)

// DefaultBackoffBase is the delay unit when Backoff.Base is zero.
const DefaultBackoffBase = time.Second

// Backoff computes the delay before the next attempt as Base*2^attempt, where
// attempt is the 1-based number of the attempt that just failed.
type Backoff struct {
	Base time.Duration
	// Max caps a single delay; zero leaves it uncapped.
	Max time.Duration
}

// Delay returns the wait that follows failed attempt number attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
