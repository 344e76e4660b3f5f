// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/supervisor"
)

// Registry errors.
var (
	ErrInstanceExists   = errors.New("pipeline: instance already registered")
	ErrInstanceNotFound = errors.New("pipeline: instance not found")
)

// Registry holds the running instances of a process, keyed by namespace.
type Registry struct {
	tree    *supervisor.Tree
	timeout time.Duration

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry creates a registry that supervises instances on tree. timeout
// bounds how long Remove waits for services to stop.
func NewRegistry(tree *supervisor.Tree, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Registry{
		tree:      tree,
		timeout:   timeout,
		instances: make(map[string]*Instance),
	}
}

// Add starts the services of inst and enables it. An enable error is
// returned but the instance stays registered, since the modules that did
// enable keep working.
func (r *Registry) Add(ctx context.Context, inst *Instance) error {
	r.mu.Lock()
	if _, ok := r.instances[inst.Name()]; ok {
		r.mu.Unlock()
		return ErrInstanceExists
	}
	if err := r.tree.AddInstance(inst.Name(), inst.Services()...); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("supervise %s: %w", inst.Name(), err)
	}
	r.instances[inst.Name()] = inst
	r.mu.Unlock()

	return inst.Enable(ctx)
}

// Get returns the instance registered under name.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove disables the instance, stops its services and closes it.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.instances[name]
	delete(r.instances, name)
	r.mu.Unlock()
	if !ok {
		return ErrInstanceNotFound
	}

	var errs []error
	if err := inst.Disable(ctx); err != nil {
		errs = append(errs, fmt.Errorf("disable %s: %w", name, err))
	}
	if err := r.tree.RemoveInstance(name, r.timeout); err != nil {
		errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
	}
	if err := inst.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", name, err))
	}
	return errors.Join(errs...)
}

// Close removes every instance.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Remove(ctx, name); err != nil {
			logging.Warn().Err(err).Str("instance", name).Msg("Failed to remove pipeline instance")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
