// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/beacon/internal/publishsettings"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseYAML = `
instance:
  account: acme
  profile: mobile
  environment: dev
storage:
  in_memory: true
`

func TestLoadFile_DefaultsAndFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, baseYAML+`
policy:
  event_batch_size: 5
dispatch:
  timeout: 5s
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Instance.Account != "acme" || cfg.Instance.Profile != "mobile" || cfg.Instance.Environment != "dev" {
		t.Errorf("Instance = %+v", cfg.Instance)
	}
	if cfg.Policy.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", cfg.Policy.BatchSize)
	}
	if cfg.Dispatch.Timeout != 5*time.Second {
		t.Errorf("Dispatch.Timeout = %v, want 5s", cfg.Dispatch.Timeout)
	}
	if cfg.Policy.QueueLimit != 40 || cfg.Policy.MinutesBetweenRefresh != 15 {
		t.Errorf("defaults lost: %+v", cfg.Policy)
	}
	if len(cfg.Dispatch.BypassEvents) != 5 {
		t.Errorf("BypassEvents = %v", cfg.Dispatch.BypassEvents)
	}
}

func TestLoadFile_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("BEACON_POLICY__EVENT_BATCH_SIZE", "8")
	t.Setenv("BEACON_LOGGING__LEVEL", "debug")
	t.Setenv("BEACON_DISPATCH__BYPASS_EVENTS", "a, b")
	t.Setenv("BEACON_UNRELATED", "ignored")

	cfg, err := LoadFile(writeConfig(t, baseYAML+`
policy:
  event_batch_size: 5
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Policy.BatchSize != 8 {
		t.Errorf("BatchSize = %d, want 8 from env", cfg.Policy.BatchSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !reflect.DeepEqual(cfg.Dispatch.BypassEvents, []string{"a", "b"}) {
		t.Errorf("BypassEvents = %v", cfg.Dispatch.BypassEvents)
	}
}

func TestExplicitKeys(t *testing.T) {
	t.Setenv("BEACON_POLICY__OFFLINE_DISPATCH_LIMIT", "100")

	cfg, err := LoadFile(writeConfig(t, baseYAML+`
policy:
  event_batch_size: 1
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"policy.event_batch_size", true},       // file, even though equal to the default
		{"policy.offline_dispatch_limit", true}, // environment
		{"policy.minutes_between_refresh", false},
		{"logging.level", false},
	}
	for _, tt := range tests {
		if got := cfg.IsExplicit(tt.key); got != tt.want {
			t.Errorf("IsExplicit(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	local := cfg.PolicyLocal()
	if !local.IsExplicit(publishsettings.FieldBatchSize) || !local.IsExplicit(publishsettings.FieldQueueLimit) {
		t.Errorf("PolicyLocal explicit = %v", local.Explicit)
	}
	if local.IsExplicit(publishsettings.FieldLogLevel) {
		t.Error("log level should not be explicit")
	}
	if local.QueueLimit != 100 {
		t.Errorf("QueueLimit = %d, want 100", local.QueueLimit)
	}
}

func TestSetMarksExplicit(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("instance.account", "acme"); err != nil {
		t.Fatalf("Set account: %v", err)
	}
	if err := cfg.Set("storage.in_memory", true); err != nil {
		t.Fatalf("Set in_memory: %v", err)
	}
	if err := cfg.Set("logging.level", "warn"); err != nil {
		t.Fatalf("Set level: %v", err)
	}

	if cfg.Logging.Level != "warn" || !cfg.IsExplicit("logging.level") {
		t.Errorf("level = %q explicit = %v", cfg.Logging.Level, cfg.IsExplicit("logging.level"))
	}
	if !cfg.PolicyLocal().IsExplicit(publishsettings.FieldLogLevel) {
		t.Error("log level set programmatically should be explicit for the policy merge")
	}
	want := []string{"instance.account", "logging.level", "storage.in_memory"}
	if got := cfg.ExplicitKeys(); !reflect.DeepEqual(got, want) {
		t.Errorf("ExplicitKeys = %v, want %v", got, want)
	}
}

func TestSetRejectsInvalidValue(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("instance.account", "acme"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err := cfg.Set("policy.event_batch_size", 0)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if cfgErr.Field != "policy.event_batch_size" {
		t.Errorf("Field = %q", cfgErr.Field)
	}
	if cfg.Policy.BatchSize != 1 || cfg.IsExplicit("policy.event_batch_size") {
		t.Error("rejected Set changed the configuration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing account", func(c *Config) { c.Instance.Account = "" }, "instance.account"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad collect url", func(c *Config) { c.Dispatch.CollectURL = "not a url" }, "dispatch.collect_url"},
		{"storage path", func(c *Config) { c.Storage.InMemory = false; c.Storage.Path = "" }, "storage"},
		{"dispatch after above limit", func(c *Config) { c.Policy.DispatchAfter = 50 }, "policy.event_dispatch_after"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Instance.Account = "acme"
			cfg.Storage.InMemory = true
			tt.mutate(cfg)

			var cfgErr *ConfigError
			if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("Validate() = %v, want field %s", err, tt.field)
			}
		})
	}

	cfg := defaultConfig()
	cfg.Instance.Account = "acme"
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults with account should validate: %v", err)
	}
}

func TestPolicySource(t *testing.T) {
	cfg := defaultConfig()
	cfg.Instance = InstanceConfig{Account: "acme", Profile: "main", Environment: "qa"}
	cfg.Policy.Profile = "settings"
	want := "https://tags.tiqcdn.com/utag/acme/settings/qa/mobile.html"
	if got := cfg.PolicySource().Resolve(); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"BEACON_INSTANCE__ACCOUNT":        "instance.account",
		"BEACON_POLICY__EVENT_BATCH_SIZE": "policy.event_batch_size",
		"BEACON_CONFIG":                   "",
		"BEACON_SOMETHING":                "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
