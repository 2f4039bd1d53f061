package taskpool

import (
	"math"
	"time"
)

const defaultRetryBase = time.Second

// RetryPolicy describes how failed attempts back off before they are
// re-enqueued. Zero values are treated as "use pool defaults".
type RetryPolicy struct {
	// Base is the delay before the first retry. Each further retry
	// doubles it.
	Base time.Duration

	// Cap bounds the doubled delay. Zero means uncapped.
	Cap time.Duration
}

func (rp *RetryPolicy) fillDefaults() {
	if rp.Base <= 0 {
		rp.Base = defaultRetryBase
	}
}

// Delay returns the backoff after failed attempt n (1-based): Base
// doubled n-1 times, so the defaults give 1s, 2s, 4s, and so on.
// Doubling saturates instead of overflowing.
func (rp RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := rp.Base
	for i := 1; i < attempt; i++ {
		if d > math.MaxInt64/2 {
			d = time.Duration(math.MaxInt64)
			break
		}
		d <<= 1
		if rp.Cap > 0 && d >= rp.Cap {
			break
		}
	}
	if rp.Cap > 0 && d > rp.Cap {
		d = rp.Cap
	}
	return d
}
