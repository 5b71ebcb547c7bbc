package session

import "time"

// Default reconnect policy.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 5 * time.Second
)

// ComputeDelay returns the wait before reconnect attempt number attempt
// (1-based): base*attempt, capped at max. Growth is linear, not exponential.
// Attempts below 1 are treated as 1.
func ComputeDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	// Guard the multiplication against overflow for very long outages.
	if max > 0 && time.Duration(attempt) > max/base {
		return max
	}
	d := base * time.Duration(attempt)
	if max > 0 && d > max {
		return max
	}
	return d
}
