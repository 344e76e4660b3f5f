// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package config

import (
	"os"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/publishsettings"
)

// policyFields maps configuration keys to the policy fields they control.
var policyFields = map[string]string{
	"policy.batching_enabled":        publishsettings.FieldBatchingEnabled,
	"policy.event_batch_size":        publishsettings.FieldBatchSize,
	"policy.event_dispatch_after":    publishsettings.FieldDispatchAfter,
	"policy.offline_dispatch_limit":  publishsettings.FieldQueueLimit,
	"policy.dispatch_expiration":     publishsettings.FieldDispatchExpiration,
	"policy.minutes_between_refresh": publishsettings.FieldMinutesBetweenRefresh,
	"policy.enable_collect":          publishsettings.FieldCollectEnabled,
	"policy.enable_tag_management":   publishsettings.FieldTagManagementEnabled,
	"policy.battery_saver":           publishsettings.FieldBatterySaver,
	"policy.wifi_only_sending":       publishsettings.FieldWifiOnlySending,
	"policy.enabled":                 publishsettings.FieldEnabled,
	"logging.level":                  publishsettings.FieldLogLevel,
}

// PolicyLocal returns the local policy settings and which of them are
// explicit.
func (c *Config) PolicyLocal() publishsettings.Local {
	explicit := make(map[string]bool)
	for key, field := range policyFields {
		if c.IsExplicit(key) {
			explicit[field] = true
		}
	}
	return publishsettings.Local{
		Settings: publishsettings.Settings{
			BatchingEnabled:        c.Policy.BatchingEnabled,
			BatchSize:              c.Policy.BatchSize,
			DispatchAfter:          c.Policy.DispatchAfter,
			QueueLimit:             c.Policy.QueueLimit,
			DispatchExpirationDays: c.Policy.DispatchExpiration,
			MinutesBetweenRefresh:  c.Policy.MinutesBetweenRefresh,
			CollectEnabled:         c.Policy.CollectEnabled,
			TagManagementEnabled:   c.Policy.TagManagementEnabled,
			BatterySaver:           c.Policy.BatterySaver,
			WifiOnlySending:        c.Policy.WifiOnlySending,
			Enabled:                c.Policy.Enabled,
			LogLevel:               c.Logging.Level,
		},
		Explicit: explicit,
	}
}

// PolicySource returns the location of the published policy page.
func (c *Config) PolicySource() publishsettings.Source {
	return publishsettings.Source{
		URL:           c.Policy.URL,
		BaseURL:       c.Policy.BaseURL,
		Account:       c.Instance.Account,
		Profile:       c.Instance.Profile,
		Environment:   c.Instance.Environment,
		PolicyProfile: c.Policy.Profile,
	}
}

// LogConfig returns the logger configuration.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		Caller:    c.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	}
}
