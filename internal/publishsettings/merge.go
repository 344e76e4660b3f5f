// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package publishsettings

// Dispatcher IDs switched by the policy backend flags.
const (
	DispatcherCollect       = "collect"
	DispatcherTagManagement = "tagmanagement"
)

// Settings are the policy-controlled pipeline settings.
type Settings struct {
	BatchingEnabled        bool    `json:"batching_enabled"`
	BatchSize              int     `json:"event_batch_size"`
	DispatchAfter          int     `json:"event_dispatch_after"`
	QueueLimit             int     `json:"offline_dispatch_limit"`
	DispatchExpirationDays int     `json:"dispatch_expiration"`
	MinutesBetweenRefresh  float64 `json:"minutes_between_refresh"`
	CollectEnabled         bool    `json:"enable_collect"`
	TagManagementEnabled   bool    `json:"enable_tag_management"`
	BatterySaver           bool    `json:"battery_saver"`
	WifiOnlySending        bool    `json:"wifi_only_sending"`
	Enabled                bool    `json:"enabled"`
	LogLevel               string  `json:"log_level"`
}

// DefaultSettings returns the settings used without any configuration.
func DefaultSettings() Settings {
	return Settings{
		BatchSize:              DefaultBatchSize,
		DispatchAfter:          DefaultBatchSize,
		QueueLimit:             DefaultQueueLimit,
		DispatchExpirationDays: DefaultDispatchExpiration,
		MinutesBetweenRefresh:  DefaultMinutesBetweenRefresh,
		CollectEnabled:         true,
		TagManagementEnabled:   true,
		Enabled:                true,
		LogLevel:               "info",
	}
}

// DisabledDispatchers returns the dispatcher IDs switched off by s.
func (s Settings) DisabledDispatchers() map[string]bool {
	disabled := make(map[string]bool, 2)
	if !s.CollectEnabled {
		disabled[DispatcherCollect] = true
	}
	if !s.TagManagementEnabled {
		disabled[DispatcherTagManagement] = true
	}
	return disabled
}

// Local holds locally configured settings and the fields set explicitly.
type Local struct {
	Settings
	Explicit map[string]bool
}

// IsExplicit reports whether field was set explicitly.
func (l Local) IsExplicit(field string) bool {
	return l.Explicit[field]
}

// Merge applies remote to local. Explicit local fields win; every other field
// takes the remote value. A nil remote returns the local settings.
func Merge(local Local, remote *Policy) Settings {
	out := local.Settings
	if remote == nil {
		return out
	}
	set := func(field string, apply func()) {
		if !local.IsExplicit(field) {
			apply()
		}
	}

	set(FieldBatchSize, func() { out.BatchSize = remote.BatchSize })
	set(FieldDispatchAfter, func() { out.DispatchAfter = remote.DispatchAfter })
	set(FieldQueueLimit, func() { out.QueueLimit = remote.QueueLimit })
	set(FieldDispatchExpiration, func() { out.DispatchExpirationDays = remote.DispatchExpiration })
	set(FieldMinutesBetweenRefresh, func() { out.MinutesBetweenRefresh = remote.MinutesBetweenRefresh })
	set(FieldCollectEnabled, func() { out.CollectEnabled = remote.CollectEnabled })
	set(FieldTagManagementEnabled, func() { out.TagManagementEnabled = remote.TagManagementEnabled })
	set(FieldBatterySaver, func() { out.BatterySaver = remote.BatterySaver })
	set(FieldWifiOnlySending, func() { out.WifiOnlySending = remote.WifiOnlySending })
	set(FieldEnabled, func() { out.Enabled = remote.Enabled })
	set(FieldLogLevel, func() { out.LogLevel = remote.LogLevel })

	// Derived from the merged batch size.
	set(FieldBatchingEnabled, func() { out.BatchingEnabled = out.BatchSize > 1 })
	return out
}
