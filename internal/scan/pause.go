package scan

import (
	"context"
	"math/rand/v2"
	"time"
)

// pause blocks for d or until ctx is done, reporting whether the full wait
// elapsed.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// RandomBaseDelay picks the process-wide pacing delay: a whole number of
// seconds in [min, max]. The same value spaces consecutive IDs and scales the
// retry backoff; it is drawn once at startup, not per request.
func RandomBaseDelay(min, max time.Duration) time.Duration {
	minSec := int64(min / time.Second)
	maxSec := int64(max / time.Second)
	if minSec < 1 {
		minSec = 1
	}
	if maxSec < minSec {
		maxSec = minSec
	}
	return time.Duration(minSec+rand.Int64N(maxSec-minSec+1)) * time.Second
}
