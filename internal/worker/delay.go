package worker

import "time"

// WaitFor returns how long to hold a notification so that at least threshold
// has passed since createdAt. Events older than threshold need no wait.
func WaitFor(now, createdAt time.Time, threshold time.Duration) time.Duration {
	wait := threshold - now.Sub(createdAt)
	if wait < 0 {
		return 0
	}
	return wait
}
