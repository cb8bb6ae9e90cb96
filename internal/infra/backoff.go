package infra

import (
	"time"
)

const (
	// Standard backoff constants
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// Backoff is an exponential retry schedule: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number retryCount.
// If retryCount is negative, it returns Base.
func (b Backoff) Delay(retryCount int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = baseDelay
	}
	if max < base {
		max = base
	}
	if retryCount < 0 {
		return base
	}

	// 2^30 seconds is already far beyond any sane cap.
	if retryCount > 30 {
		return max
	}

	backoff := base * time.Duration(1<<retryCount)
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}

// CalculateBackoff returns the exponential backoff duration for a given retry count
// using the standard 1s base and 60s cap.
func CalculateBackoff(retryCount int) time.Duration {
	return Backoff{Base: baseDelay, Max: maxDelay}.Delay(retryCount)
}
