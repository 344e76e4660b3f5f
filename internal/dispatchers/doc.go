// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package dispatchers provides the stock dispatchers shipped with the beacon
// binary.
//
// Collect posts each payload as JSON to a collection endpoint. Its identifier
// matches the one switched by the enable_collect policy flag. Log writes
// every payload to the structured log, which is useful for local runs
// without a collection endpoint.
package dispatchers
