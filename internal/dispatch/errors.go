// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnabled is reported for track requests submitted before Enable or
	// after Disable.
	ErrNotEnabled = errors.New("dispatch: chain not enabled")

	// ErrDisabledByPolicy is reported when the remote policy disabled the
	// pipeline.
	ErrDisabledByPolicy = errors.New("dispatch: pipeline disabled by remote policy")

	// ErrDropped is reported when a validator dropped the request.
	ErrDropped = errors.New("dispatch: request dropped")

	// ErrShutdown is reported for requests still in flight when the chain
	// is disabled or closed.
	ErrShutdown = errors.New("dispatch: chain shut down")

	// ErrDispatcherPanic is wrapped when a dispatcher panics.
	ErrDispatcherPanic = errors.New("dispatch: dispatcher panicked")
)

// ModuleError records a module that failed to enable.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}
