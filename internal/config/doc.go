// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package config loads the Beacon configuration.

# Configuration Sources

Sources are layered with Koanf, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (BEACON_CONFIG, then config.yaml, then /etc/beacon/config.yaml)
 3. Environment variables prefixed with BEACON_

Environment variables use a double underscore between sections:

	BEACON_INSTANCE__ACCOUNT=acme
	BEACON_POLICY__EVENT_BATCH_SIZE=10
	BEACON_LOGGING__LEVEL=debug

# Explicit Settings

The remote policy may override any pipeline setting the operator did not set.
A key counts as explicit when the YAML file or the environment provided it, or
when it was changed with Config.Set. Defaults never count. PolicyLocal exposes
the result to the policy merge.

# Validation

Struct tags are checked with go-playground/validator (see internal/validation).
Validate returns a *ConfigError naming the first failing key.
*/
package config
