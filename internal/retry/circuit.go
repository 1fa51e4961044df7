// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package retry

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Breaker wraps a gobreaker.CircuitBreaker with the pipeline's logging
// and a context-aware Execute helper.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker builds a breaker that opens after consecutiveFailures
// consecutive failures (any error returned by fn counts) and probes again
// after timeout elapses.
func NewBreaker(name string, consecutiveFailures uint32, timeout, interval time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(n string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", n).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings), name: name}
}

// Execute runs fn under the breaker. When the breaker is open it returns
// gobreaker.ErrOpenState without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the breaker's current state name (closed/half-open/open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}
