package model

import (
	"math"
	"time"
)

// RetryPolicy controls the pause before a retried fetch and how many
// retries a task gets.
type RetryPolicy struct {
	// Cooldown is the delay before the first retry.
	Cooldown time.Duration

	// Exponent multiplies the delay for each further retry.
	Exponent float64

	// MaxDelay caps the delay. Zero means no cap.
	MaxDelay time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Zero means unlimited.
	MaxRetries int
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Cooldown:   500 * time.Millisecond,
		Exponent:   2,
		MaxDelay:   30 * time.Second,
		MaxRetries: 0,
	}
}

// Delay returns the pause before the attempt numbered attempt (1-based).
// The first attempt never waits.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 || p.Cooldown <= 0 {
		return 0
	}
	exp := p.Exponent
	if exp < 1 {
		exp = 1
	}
	d := float64(p.Cooldown) * math.Pow(exp, float64(attempt-2))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether a task that has made attempts attempts may
// not be retried again.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxRetries > 0 && attempts > p.MaxRetries
}
