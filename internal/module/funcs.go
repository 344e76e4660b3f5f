// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package module

import (
	"context"

	"github.com/tomtom215/beacon/internal/request"
)

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc struct {
	Name string
	Fn   func(ctx context.Context, t *request.Track) (map[string]any, error)
	// EnableErr, when set, is returned from Enable.
	EnableErr error
}

// ID implements Module.
func (d *DispatchFunc) ID() string { return d.Name }

// Enable implements Module.
func (d *DispatchFunc) Enable(context.Context, request.Enable) error { return d.EnableErr }

// Disable implements Module.
func (d *DispatchFunc) Disable(context.Context, request.Disable) {}

// Dispatch implements Dispatcher.
func (d *DispatchFunc) Dispatch(ctx context.Context, t *request.Track) (map[string]any, error) {
	if d.Fn == nil {
		return nil, nil
	}
	return d.Fn(ctx, t)
}

// ValidatorFuncs adapts functions to the Module and Validator interfaces.
// Nil functions answer false.
type ValidatorFuncs struct {
	Name  string
	Queue func(t *request.Track) (bool, map[string]any)
	Drop  func(t *request.Track) bool
	Purge func(t *request.Track) bool
}

// ID implements Validator.
func (v *ValidatorFuncs) ID() string { return v.Name }

// Enable implements Module.
func (v *ValidatorFuncs) Enable(context.Context, request.Enable) error { return nil }

// Disable implements Module.
func (v *ValidatorFuncs) Disable(context.Context, request.Disable) {}

// ShouldQueue implements Validator.
func (v *ValidatorFuncs) ShouldQueue(t *request.Track) (bool, map[string]any) {
	if v.Queue == nil {
		return false, nil
	}
	return v.Queue(t)
}

// ShouldDrop implements Validator.
func (v *ValidatorFuncs) ShouldDrop(t *request.Track) bool {
	return v.Drop != nil && v.Drop(t)
}

// ShouldPurge implements Validator.
func (v *ValidatorFuncs) ShouldPurge(t *request.Track) bool {
	return v.Purge != nil && v.Purge(t)
}
