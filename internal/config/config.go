// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package config

import (
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/tomtom215/beacon/internal/storage"
)

// Config holds all application configuration.
type Config struct {
	Instance     InstanceConfig     `koanf:"instance"`
	Storage      storage.Config     `koanf:"storage"`
	Logging      LoggingConfig      `koanf:"logging"`
	Dispatch     DispatchConfig     `koanf:"dispatch"`
	Policy       PolicyConfig       `koanf:"policy"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	DataLayer    DataLayerConfig    `koanf:"datalayer"`
	Consent      ConsentConfig      `koanf:"consent"`
	Server       ServerConfig       `koanf:"server"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`

	k        *koanf.Koanf
	explicit map[string]bool
}

// InstanceConfig identifies the pipeline instance. The triple namespaces all
// persisted state.
type InstanceConfig struct {
	Account     string `koanf:"account" validate:"required"`
	Profile     string `koanf:"profile" validate:"required"`
	Environment string `koanf:"environment" validate:"required"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DispatchConfig holds module chain and delivery settings.
type DispatchConfig struct {
	Timeout             time.Duration `koanf:"timeout" validate:"gte=0"`
	StartupReleaseDelay time.Duration `koanf:"startup_release_delay" validate:"gte=0"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests" validate:"gte=1"`
	BreakerInterval         time.Duration `koanf:"breaker_interval" validate:"gte=0"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" validate:"gte=1"`

	// CollectURL enables the HTTP collect dispatcher when set.
	CollectURL string `koanf:"collect_url" validate:"omitempty,url"`

	// LogEvents enables the dispatcher that writes every event to the log.
	LogEvents bool `koanf:"log_events"`

	// BypassEvents are never held back by batching.
	BypassEvents []string `koanf:"bypass_events"`
}

// PolicyConfig holds the local values of policy-controlled settings and the
// location of the remote policy.
type PolicyConfig struct {
	// Fetch enables remote policy retrieval.
	Fetch         bool          `koanf:"fetch"`
	URL           string        `koanf:"url" validate:"omitempty,url"`
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	Profile       string        `koanf:"profile"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`

	BatchingEnabled       bool    `koanf:"batching_enabled"`
	BatchSize             int     `koanf:"event_batch_size" validate:"gte=1"`
	DispatchAfter         int     `koanf:"event_dispatch_after" validate:"gte=0"`
	QueueLimit            int     `koanf:"offline_dispatch_limit" validate:"gte=0"`
	DispatchExpiration    int     `koanf:"dispatch_expiration" validate:"gte=0"`
	MinutesBetweenRefresh float64 `koanf:"minutes_between_refresh" validate:"gte=0"`
	CollectEnabled        bool    `koanf:"enable_collect"`
	TagManagementEnabled  bool    `koanf:"enable_tag_management"`
	BatterySaver          bool    `koanf:"battery_saver"`
	WifiOnlySending       bool    `koanf:"wifi_only_sending"`
	Enabled               bool    `koanf:"enabled"`
}

// ConnectivityConfig holds reachability probing settings.
type ConnectivityConfig struct {
	// URL is probed with HEAD requests. Empty means always online.
	URL          string        `koanf:"url" validate:"omitempty,url"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	CheckTimeout time.Duration `koanf:"check_timeout" validate:"gt=0"`
}

// DataLayerConfig holds persistent data layer settings.
type DataLayerConfig struct {
	SessionLength time.Duration `koanf:"session_length" validate:"gt=0"`
}

// ConsentConfig holds consent gating settings.
type ConsentConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ServerConfig holds HTTP ingest server configuration.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RateLimit is the number of ingest requests allowed per client per minute.
	// Zero disables limiting.
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// SupervisorConfig holds supervisor tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// defaultConfig returns a Config with all default values.
func defaultConfig() *Config {
	return &Config{
		Instance: InstanceConfig{
			Account:     "",
			Profile:     "main",
			Environment: "prod",
		},
		Storage: storage.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Dispatch: DispatchConfig{
			Timeout:                 30 * time.Second,
			StartupReleaseDelay:     2 * time.Second,
			BreakerMaxRequests:      3,
			BreakerInterval:         30 * time.Second,
			BreakerTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
			LogEvents:               true,
			BypassEvents: []string{
				"update_consent_cookie",
				"set_dirty_bit",
				"grant_full_consent",
				"grant_partial_consent",
				"decline_consent",
			},
		},
		Policy: PolicyConfig{
			Fetch:                 false,
			FetchTimeout:          10 * time.Second,
			CheckInterval:         time.Minute,
			BatchingEnabled:       false,
			BatchSize:             1,
			DispatchAfter:         1,
			QueueLimit:            40,
			DispatchExpiration:    7,
			MinutesBetweenRefresh: 15,
			CollectEnabled:        true,
			TagManagementEnabled:  true,
			Enabled:               true,
		},
		Connectivity: ConnectivityConfig{
			Interval:     30 * time.Second,
			CheckTimeout: 5 * time.Second,
		},
		DataLayer: DataLayerConfig{
			SessionLength: 30 * time.Minute,
		},
		Consent: ConsentConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Addr:            ":8088",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       600,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}
