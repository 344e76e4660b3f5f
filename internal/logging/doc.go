// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package logging provides centralized zerolog-based structured logging for Beacon.
//
// Every pipeline component logs through the global logger exposed here, so the
// host application controls format and verbosity in a single place. The remote
// publish settings may adjust the level at runtime unless the host pinned one.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("module", "connectivity").Msg("Connection restored")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Dispatch failed")
//
// # Levels
//
// Levels are trace, debug, info, warn, error, fatal, panic and disabled.
// Publish settings use their own vocabulary which PolicyLevel translates:
//
//	dev  -> info
//	qa   -> debug
//	prod -> error
//	*    -> disabled
//
// # Supervisor Integration
//
// SlogHandler adapts the zerolog logger to log/slog so sutureslog event hooks
// for the supervisor tree end up in the same output stream.
package logging
