// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package dispatch implements the module chain: the orchestrator that routes
enable, disable, track and custom requests through the registered modules.

# Architecture

	Track(payload) ──► Serial executor ──► collectors (enrich)
	                                        │
	                                        ▼
	                                  validators: drop? ──► completion(ErrDropped)
	                                        │
	                                        ▼
	                                  validators: queue? ──► dispatchqueue.Enqueue
	                                        │
	                                        ▼
	                           no dispatcher ready? ──► Enqueue(dispatchers_not_ready)
	                                        │
	                                        ▼
	                   dispatcher lanes (one per dispatcher, circuit breaker)
	                                        │
	                                        ▼
	                     completion(aggregate of ModuleResponses), once

All chain state is owned by a single rwqueue.Serial, so modules never race
each other's Enable, Disable or validator calls. Delivery runs on per
dispatcher lanes: every dispatcher sees requests in the order the chain
accepted them, while a slow backend never blocks the chain or other backends.

# Validator Semantics

Drop always wins: a request any validator drops is never queued. When several
validators want to queue the same request it is enqueued once, with the
reason data of every interested validator merged into its payload. The first
queue_reason recorded is never overwritten.

# Queue Release

A release is attempted when a Controller asks for one (connectivity restored,
consent granted), when the queue reaches the dispatch-after threshold, and
shortly after Enable when the restored queue is not empty. Before draining,
validators are consulted with a probe request {release_request: true}; any
validator that would queue, drop or purge the probe vetoes the release.
Released requests carry bypass_queue=true so batching does not immediately
defer them again. The marker is stripped before delivery. Validator data
returned without queueing, such as the consent decision, is merged into each
released payload. When Settings.BatchSize is above one, dispatchers that
implement module.BatchDispatcher receive the released requests in chunks of
up to BatchSize.

# Failure Isolation

A module that fails to enable is recorded and skipped; the remaining modules
still enable. Dispatcher failures, timeouts and panics become failed
ModuleResponses. Each dispatcher is wrapped in a gobreaker circuit breaker so
a backend that keeps failing is short-circuited instead of hammered.
Disable and Close fail every accepted request that was never delivered with
ErrShutdown.
*/
package dispatch
