package fetch

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 12 * time.Second

	// JitterMax bounds the random delay added on top of the exponential backoff.
	JitterMax = 400 * time.Millisecond
)

// BackoffDelay returns the base delay before the next attempt after attempt k
// (0-indexed) failed: min(2s * 2^k, 12s). Jitter is added separately.
func BackoffDelay(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(JitterMax)))
}
