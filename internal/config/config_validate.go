// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package config

import (
	"github.com/tomtom215/beacon/internal/validation"
)

// ConfigError names the first invalid configuration key.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		f := err.Fields()[0]
		return &ConfigError{Field: f.Field(), Message: f.Error()}
	}

	if err := c.Storage.Validate(); err != nil {
		return &ConfigError{Field: "storage", Message: err.Error()}
	}

	if c.Policy.QueueLimit > 0 && c.Policy.DispatchAfter > c.Policy.QueueLimit {
		return &ConfigError{
			Field:   "policy.event_dispatch_after",
			Message: "must not exceed policy.offline_dispatch_limit",
		}
	}
	return nil
}
