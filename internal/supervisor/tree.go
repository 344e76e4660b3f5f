// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Errors for instance management.
var (
	ErrInstanceExists     = errors.New("supervisor: instance already running")
	ErrInstanceNotRunning = errors.New("supervisor: instance not running")
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree manages the hierarchical supervisor structure for Beacon.
type Tree struct {
	root      *suture.Supervisor
	storage   *suture.Supervisor
	pipelines *suture.Supervisor
	api       *suture.Supervisor
	logger    *slog.Logger
	config    TreeConfig

	mu        sync.Mutex
	instances map[string]suture.ServiceToken
}

// NewTree creates a supervisor tree. Zero config values take defaults.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("beacon", rootSpec)
	storage := suture.New("storage-layer", childSpec(config))
	pipelines := suture.New("pipelines", childSpec(config))
	api := suture.New("api-layer", childSpec(config))

	root.Add(storage)
	root.Add(pipelines)
	root.Add(api)

	return &Tree{
		root:      root,
		storage:   storage,
		pipelines: pipelines,
		api:       api,
		logger:    logger,
		config:    config,
		instances: make(map[string]suture.ServiceToken),
	}
}

// Child supervisors inherit the EventHook when added to the root.
func childSpec(config TreeConfig) suture.Spec {
	return suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
}

// Root returns the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddStorageService adds a service to the storage layer.
func (t *Tree) AddStorageService(svc suture.Service) suture.ServiceToken {
	return t.storage.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddInstance starts services of one pipeline instance under a dedicated
// supervisor.
func (t *Tree) AddInstance(name string, services ...suture.Service) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.instances[name]; ok {
		return ErrInstanceExists
	}

	sup := suture.New("pipeline-"+name, childSpec(t.config))
	for _, svc := range services {
		sup.Add(svc)
	}
	t.instances[name] = t.pipelines.Add(sup)
	t.logger.Info("pipeline instance supervised", "instance", name, "services", len(services))
	return nil
}

// RemoveInstance stops the services of an instance and waits up to timeout.
func (t *Tree) RemoveInstance(name string, timeout time.Duration) error {
	t.mu.Lock()
	token, ok := t.instances[name]
	if ok {
		delete(t.instances, name)
	}
	t.mu.Unlock()
	if !ok {
		return ErrInstanceNotRunning
	}
	return t.pipelines.RemoveAndWait(token, timeout)
}

// Instances returns the supervised instance names in sorted order.
func (t *Tree) Instances() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.instances))
	for name := range t.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serve starts the tree and blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
