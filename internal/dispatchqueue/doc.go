// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package dispatchqueue implements the durable FIFO of deferred track requests.
//
// Entries live in memory and are persisted to a single DiskStorage blob on
// every mutation, so a queue restored after a restart resumes exactly where it
// left off, including the queue_reason recorded when each entry was deferred.
//
// All state is owned by the pipeline's shared reader-writer queue: mutations
// are exclusive writes and inspections are reads. Enqueue and ReleaseAll never
// block the caller.
//
// Bounds:
//   - MaxSize: oldest entries are purged first once the queue grows past it
//   - MaxAge: entries older than this are purged on every mutation
//
// Completions cannot be persisted. They are held in a side table keyed by
// request UUID and rebound to the replayed request on release. A request
// whose entry is purged has its completion fired with ErrPurged.
//
// Release is best effort: an entry drained by ReleaseAll is no longer on disk,
// so a crash before its resubmission completes loses it.
package dispatchqueue
