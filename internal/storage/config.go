// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package storage

import "time"

// Config holds blob store configuration.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory keeps all data in memory (tests, ephemeral hosts).
	InMemory bool `koanf:"in_memory"`

	// SyncWrites forces fsync after every write.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy compression for stored blobs.
	Compression bool `koanf:"compression"`

	// GCInterval is the time between value log GC runs. Zero disables GC.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCRatio is the discard ratio passed to BadgerDB value log GC.
	GCRatio float64 `koanf:"gc_ratio"`

	// MemTableSize is the size of each memtable in bytes.
	MemTableSize int64 `koanf:"memtable_size"`

	// ValueLogFileSize is the size of each value log file in bytes.
	ValueLogFileSize int64 `koanf:"vlog_size"`
}

// DefaultConfig returns storage defaults. Telemetry blobs are small, so the
// BadgerDB tables are sized far below server defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "beacon-data",
		InMemory:         false,
		SyncWrites:       true,
		Compression:      true,
		GCInterval:       30 * time.Minute,
		GCRatio:          0.5,
		MemTableSize:     4 * 1024 * 1024,
		ValueLogFileSize: 16 * 1024 * 1024,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return &ConfigError{Field: "Path", Message: "storage path is required unless in_memory is set"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "storage config error: " + e.Field + ": " + e.Message
}
