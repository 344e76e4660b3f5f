// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatch

import (
	"fmt"
	"time"

	"github.com/tomtom215/beacon/internal/dispatchqueue"
)

// Config holds chain settings fixed at construction.
type Config struct {
	// Instance labels logs and metrics.
	Instance string

	// DispatchTimeout bounds a single Dispatch call. Zero disables the bound.
	DispatchTimeout time.Duration

	// StartupReleaseDelay is the wait before releasing a restored queue.
	StartupReleaseDelay time.Duration

	// Breaker configures the per-dispatcher circuit breaker.
	Breaker BreakerConfig
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Consecutive failures before opening
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Instance:            "default",
		DispatchTimeout:     30 * time.Second,
		StartupReleaseDelay: 2 * time.Second,
		Breaker: BreakerConfig{
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Instance == "" {
		return &ConfigError{Field: "Instance", Message: "must not be empty"}
	}
	if c.DispatchTimeout < 0 {
		return &ConfigError{Field: "DispatchTimeout", Message: "must not be negative"}
	}
	if c.StartupReleaseDelay < 0 {
		return &ConfigError{Field: "StartupReleaseDelay", Message: "must not be negative"}
	}
	if c.Breaker.FailureThreshold == 0 {
		return &ConfigError{Field: "Breaker.FailureThreshold", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dispatch config: %s %s", e.Field, e.Message)
}

// Settings are the runtime-adjustable chain settings, derived from the merged
// local and remote configuration.
type Settings struct {
	// DispatchAfter releases the queue once it holds this many entries.
	DispatchAfter int

	// BatchSize is the largest group of released requests handed to a
	// module.BatchDispatcher in one call. Values below 2 disable batches.
	BatchSize int

	// Queue bounds the durable queue.
	Queue dispatchqueue.Limits

	// Disabled rejects every track request with ErrDisabledByPolicy.
	Disabled bool

	// DisabledDispatchers switches individual dispatchers off by ID. Requests
	// are queued as not ready when every dispatcher is switched off.
	DisabledDispatchers map[string]bool
}

// DefaultSettings returns the settings used until a configuration is applied.
func DefaultSettings() Settings {
	return Settings{
		DispatchAfter: 1,
		Queue:         dispatchqueue.DefaultLimits(),
	}
}
