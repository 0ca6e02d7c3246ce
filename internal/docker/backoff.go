package docker

import "time"

// RetryStrategy computes the delay before a reconnect attempt
type RetryStrategy interface {
	// NextDelay calculates the delay for the given attempt, starting at 0
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements capped exponential backoff. Retries
// are indefinite; the cap keeps the reconnect cadence bounded while
// the Docker daemon is down for long stretches.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// NextDelay calculates the delay using exponential backoff
func (s *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= s.Multiplier
		if delay >= float64(s.MaxDelay) {
			return s.MaxDelay
		}
	}
	return time.Duration(delay)
}

// DefaultBackoff is the reconnect policy for the event subscription
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}
