// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package rwqueue provides the execution contexts shared by pipeline components.
//
// # Queue
//
// Queue is a concurrent-read / exclusive-write context. Reads run
// synchronously on the caller's goroutine and may overlap with each other.
// Writes are submitted asynchronously, execute one at a time in submission
// order, and never overlap a read. A read waits for every write submitted
// before it, so a goroutine always observes its own earlier writes.
//
// Go has no goroutine-local storage, so reentrancy is tracked through the
// context.Context handed to each block. A block that calls Read or Write
// with the context it was given runs inline instead of re-entering the
// queue, which would otherwise deadlock:
//
//	q.Write(ctx, func(ctx context.Context) {
//	    entries = append(entries, e)
//	    n := rwqueue.Get(q, ctx, func(context.Context) int { return len(entries) }) // inline
//	})
//
// # Serial
//
// Serial is a single-goroutine FIFO executor used for chain orchestration and
// module lifecycle transitions so modules never race each other's
// enable, disable and track calls. It implements suture.Service.
package rwqueue
