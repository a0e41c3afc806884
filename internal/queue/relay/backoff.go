package relay

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff spaces out publish attempts for one message:
// attempt=0 => 2s, attempt=1 => 4s, ... capped at 5m, plus up to 250ms jitter.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
