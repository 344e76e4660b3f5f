// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package metrics provides Prometheus instrumentation for the event pipeline.

All collectors are registered with the default registry through promauto and
exposed by the host on /metrics (see cmd/beacon).

# Metric Categories

Track lifecycle:
  - beacon_tracks_submitted_total: track requests accepted by an instance
  - beacon_tracks_dropped_total{validator}: requests discarded by a validator
  - beacon_tracks_queued_total{reason}: requests deferred to the durable queue
  - beacon_tracks_completed_total{outcome}: completions fired (success/failure)

Durable queue:
  - beacon_queue_depth{instance}: current number of queued entries
  - beacon_queue_released_total: entries resubmitted by a release
  - beacon_queue_purged_total{cause}: entries discarded (count, age, validator)

Dispatch:
  - beacon_dispatch_total{dispatcher,outcome}: delivery attempts
  - beacon_dispatch_duration_seconds{dispatcher}: delivery latency
  - beacon_dispatcher_breaker_state{dispatcher}: 0 closed, 1 half-open, 2 open

Remote policy:
  - beacon_policy_fetches_total{outcome}: fetched, not_modified, error, skipped

Connectivity:
  - beacon_connectivity_online: 1 when the provider reports reachable

# Usage

	metrics.RecordQueued("connectivity")
	metrics.SetQueueDepth("acct.main.prod", 3)
	metrics.RecordDispatch("collect", 12*time.Millisecond, nil)
*/
package metrics
