// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package module defines the capability interfaces that plug into the
// dispatch chain.
//
// Every module has an identifier and an Enable/Disable lifecycle. Extra
// capabilities are expressed as additional interfaces and discovered with
// type assertions:
//
//   - Collector: contributes enrichment data merged into every track payload
//   - Validator: gates track requests (queue, drop, purge)
//   - Dispatcher: delivers track requests to a backend
//   - BatchDispatcher: also delivers released requests in batches
//   - Handler: receives custom coordination requests
//   - Attacher: receives a Controller to trigger queue release or purge
//
// Modules are constructed disabled. The chain calls Enable once per pipeline
// enable and Disable when the pipeline shuts down; the chain never calls two
// lifecycle methods of the same module concurrently.
package module

import (
	"context"

	"github.com/tomtom215/beacon/internal/request"
)

// Module is the capability shared by every chain participant.
type Module interface {
	ID() string
	Enable(ctx context.Context, req request.Enable) error
	Disable(ctx context.Context, req request.Disable)
}

// Collector enriches track payloads.
type Collector interface {
	Module
	Data(ctx context.Context) map[string]any
}

// Dispatcher delivers a track request. Dispatch may block; the chain calls it
// off the orchestration goroutine. The returned info is attached to the
// ModuleResponse.
type Dispatcher interface {
	Module
	Dispatch(ctx context.Context, t *request.Track) (map[string]any, error)
}

// BatchDispatcher is a Dispatcher that also accepts released requests in
// groups. The returned info and error apply to every request of the batch.
type BatchDispatcher interface {
	Dispatcher
	DispatchBatch(ctx context.Context, batch []*request.Track) (map[string]any, error)
}

// Validator decides whether a track request is delivered now, deferred or
// discarded.
type Validator interface {
	ID() string
	// ShouldQueue reports whether t must be deferred. The returned data is
	// merged into the payload either way, also when a released request is
	// evaluated again.
	ShouldQueue(t *request.Track) (bool, map[string]any)
	// ShouldDrop reports whether t must never be delivered nor queued.
	ShouldDrop(t *request.Track) bool
	// ShouldPurge is evaluated against already queued requests.
	ShouldPurge(t *request.Track) bool
}

// Handler receives custom coordination requests.
type Handler interface {
	Handle(ctx context.Context, req request.Custom)
}

// Controller is the view of the chain exposed to coordination modules.
type Controller interface {
	// ReleaseQueue asks the chain to flush the durable queue.
	ReleaseQueue(reason string)
	// PurgeQueue asks the chain to re-evaluate ShouldPurge on queued entries.
	PurgeQueue()
}

// Attacher is implemented by modules that need a Controller.
type Attacher interface {
	Attach(c Controller)
}

// Named wraps an identifier for modules built from closures in tests or hosts.
type Named string

// ID returns the name.
func (n Named) ID() string { return string(n) }
