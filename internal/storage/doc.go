// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package storage provides the named-blob persistence used by the pipeline.
//
// DiskStorage is the only API other components see: save, retrieve, delete
// and append a named blob. Blobs are namespaced by
// account.profile.environment and by module so several pipeline instances
// can share one backend without colliding:
//
//	acme.main.prod/dispatchqueue/queue
//	acme.main.prod/publishsettings/settings
//	acme.main.prod/datalayer/data
//
// Every blob is wrapped in a versioned, schema-tagged envelope encoded with
// goccy/go-json. Retrieving a blob that is absent, corrupt, written by a
// newer envelope version, or tagged with a different schema reports "no
// data" rather than an error, so first launch and corruption both start
// empty.
//
// # Backends
//
//   - BadgerBackend: BadgerDB (pure Go, ACID, checksummed). Optionally
//     in-memory for tests.
//   - MemoryBackend: a map guarded by a mutex.
//
// # Concurrency
//
// Writes run on a shared rwqueue.Queue and never on the caller's goroutine;
// reads wait for earlier writes, so a Retrieve after a Save observes it.
package storage
