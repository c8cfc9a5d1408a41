// Package backoff provides linear backoff utilities for bounded retry loops.
package backoff

import "time"

// LinearPolicy waits Base * attempt after each failed attempt.
type LinearPolicy struct {
	// Base is the delay after the first failed attempt.
	Base time.Duration
	// Max caps the delay. Zero means no cap.
	Max time.Duration
}

// DefaultPolicy returns the policy used for completion retries.
// Attempt 1: 1.5s, attempt 2: 3s.
func DefaultPolicy() LinearPolicy {
	return LinearPolicy{Base: 1500 * time.Millisecond}
}

// Delay returns the wait after the given failed attempt. Attempt numbers start at 1.
func (p LinearPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base * time.Duration(attempt)
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}
