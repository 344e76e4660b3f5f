// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/beacon/config.yaml",
	"/etc/beacon/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "BEACON_CONFIG"

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "BEACON_"

// Load loads configuration from defaults, the first config file found and the
// environment.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit file path. An empty path skips the file
// layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	explicit := make(map[string]bool)

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file. Loaded separately so its keys can be recorded.
	if path != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		if err := mergeExplicit(k, fk, explicit); err != nil {
			return nil, fmt.Errorf("failed to merge config file %s: %w", path, err)
		}
	}

	// Layer 3: environment
	ek := koanf.New(".")
	if err := ek.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := mergeExplicit(k, ek, explicit); err != nil {
		return nil, fmt.Errorf("failed to merge environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg, err := build(k)
	if err != nil {
		return nil, err
	}
	cfg.explicit = explicit
	return cfg, nil
}

// Default returns the defaults with no explicit keys. The account must still
// be supplied with Set before the result validates.
func Default() *Config {
	k := koanf.New(".")
	// Loading a struct into an empty instance cannot fail.
	_ = k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	cfg := defaultConfig()
	cfg.k = k
	cfg.explicit = make(map[string]bool)
	return cfg
}

func mergeExplicit(dst, layer *koanf.Koanf, explicit map[string]bool) error {
	for _, key := range layer.Keys() {
		explicit[key] = true
	}
	return dst.Merge(layer)
}

func build(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg.k = k
	return cfg, nil
}

// Set changes key programmatically and marks it explicit. The change is
// rejected, leaving c untouched, when the result does not validate.
func (c *Config) Set(key string, value any) error {
	k := c.k.Copy()
	if err := k.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	next, err := build(k)
	if err != nil {
		return err
	}
	explicit := c.explicit
	*c = *next
	c.explicit = explicit
	c.explicit[key] = true
	return nil
}

// IsExplicit reports whether key was set by the file, the environment or Set.
func (c *Config) IsExplicit(key string) bool {
	return c.explicit[key]
}

// ExplicitKeys returns the explicit keys in sorted order.
func (c *Config) ExplicitKeys() []string {
	keys := make([]string, 0, len(c.explicit))
	for key := range c.explicit {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when given as strings.
var sliceConfigPaths = []string{
	"dispatch.bypass_events",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps BEACON_SECTION__KEY_NAME to section.key_name.
// BEACON_CONFIG names the file and is not a setting.
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}
