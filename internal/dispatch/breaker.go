// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatch

import (
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
)

// newBreaker creates the circuit breaker guarding one dispatcher.
func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[map[string]any] {
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logging.Warn().
				Str("dispatcher", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Dispatcher circuit breaker state changed")
		},
	}
	metrics.SetBreakerState(name, int(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[map[string]any](settings)
}
