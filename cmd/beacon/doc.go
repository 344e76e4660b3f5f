// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package main is the entry point for the beacon event pipeline server.
//
// The server runs one pipeline instance for the configured
// account/profile/environment and accepts events over HTTP.
//
// # Startup Order
//
//  1. Configuration: defaults, config file, BEACON_ environment variables (Koanf v2)
//  2. Logging: zerolog with the configured level and format
//  3. Storage: BadgerDB, in-memory when storage.in_memory is set
//  4. Supervisor tree: storage compactor, pipeline instance, HTTP server
//  5. Pipeline: modules enabled, persisted queue restored, policy fetched
//
// # Configuration
//
// Nested keys use a double underscore in environment variables:
//
//	BEACON_INSTANCE__ACCOUNT=acme
//	BEACON_INSTANCE__PROFILE=main
//	BEACON_INSTANCE__ENVIRONMENT=prod
//	BEACON_DISPATCH__COLLECT_URL=https://collect.example.com/event
//	BEACON_POLICY__FETCH=true
//
// A YAML file is read from BEACON_CONFIG or the default paths (./config.yaml,
// /etc/beacon/config.yaml).
//
// # Signal Handling
//
// On SIGINT or SIGTERM the pipeline is disabled first so queued events are
// persisted, then the supervisor tree stops the HTTP server and background
// services.
package main
