// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package retry provides exponential backoff with jitter and a
// per-dependency circuit breaker wrapper, shared by every client that
// calls an unreliable external service (clip catalog, audio processor,
// AI inference, source control, notifier).
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/tomtom215/cartographus/internal/perr"
)

// Policy configures exponential backoff: delay(attempt) = min(base *
// 2^(attempt-1), cap), jittered by up to JitterFraction in either direction.
type Policy struct {
	MaxAttempts    int // total attempts including the first, not retries
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64 // e.g. 0.1 for +/-10%
}

// DefaultPolicy uses a 1s base delay, a 10s cap, and 10% jitter.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.1,
	}
}

// Delay returns the backoff delay before the given attempt (1-indexed:
// attempt 1 is the delay before the first retry, i.e. after the initial
// failure).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	d := time.Duration(base)
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterFraction > 0 {
		jitter := (rand.Float64()*2 - 1) * p.JitterFraction
		d = time.Duration(float64(d) * (1 + jitter))
	}
	return d
}

// Do runs fn up to p.MaxAttempts times, sleeping Delay(attempt) between
// attempts. It stops retrying as soon as fn's error is not
// perr.Retryable, or the context is cancelled. The last error is returned
// if all attempts are exhausted.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !perr.Retryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
