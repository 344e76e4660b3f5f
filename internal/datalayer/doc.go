// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package datalayer holds key/value data merged into every track payload.
//
// Values carry an expiry:
//
//   - Forever: persisted until deleted
//   - Session: persisted, expires SessionLength after it was written
//   - UntilRestart: kept in memory only
//   - After(d) / Until(t): persisted, expires at a fixed time
//
// Persisted values live in one DiskStorage blob per pipeline instance and
// are accessed through the pipeline's shared reader-writer queue. Expired
// values are never returned and are removed on the next write.
//
// The data layer is also where trace membership lives: JoinTrace stores
// trace_id as session data and LeaveTrace deletes it.
package datalayer
