// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package connectivity gates track requests on network reachability.
//
// Module is a dispatch validator: while the Provider reports the network as
// unreachable every track request is deferred to the durable queue. When
// reachability returns, the module asks the chain to release the queue.
//
// Release is edge-triggered. It fires on an offline to online transition,
// and only if a request observed the offline state since the previous
// release (or since Enable). Rapid reachability flapping without traffic
// therefore never produces release storms.
//
// Reachability is sampled by Monitor, a suture service that polls the
// provider on a fixed interval. Hosts that learn about reachability by other
// means call Module.Update directly.
package connectivity
