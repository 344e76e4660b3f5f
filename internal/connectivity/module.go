// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/request"
)

// ModuleID identifies the connectivity module in the chain.
const ModuleID = "connectivity"

// Module defers track requests while the network is unreachable.
type Module struct {
	provider     Provider
	checkTimeout time.Duration

	enabled        atomic.Bool
	online         atomic.Bool
	pendingRelease atomic.Bool

	mu  sync.Mutex
	ctl module.Controller

	// offlineLog throttles "still offline" messages.
	offlineLog *rate.Limiter
}

// New creates a connectivity module backed by provider.
func New(provider Provider, checkTimeout time.Duration) *Module {
	m := &Module{
		provider:     provider,
		checkTimeout: checkTimeout,
		offlineLog:   rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	m.online.Store(true)
	return m
}

// ID implements module.Module.
func (m *Module) ID() string {
	return ModuleID
}

// Attach implements module.Attacher.
func (m *Module) Attach(c module.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctl = c
}

// Enable samples the provider once and starts gating.
func (m *Module) Enable(ctx context.Context, _ request.Enable) error {
	m.pendingRelease.Store(true)
	m.enabled.Store(true)
	m.Check(ctx)
	return nil
}

// Disable stops gating.
func (m *Module) Disable(context.Context, request.Disable) {
	m.enabled.Store(false)
}

// Online reports the last observed reachability.
func (m *Module) Online() bool {
	return m.online.Load()
}

// Check samples the provider and applies the result. Provider errors count
// as unreachable.
func (m *Module) Check(ctx context.Context) {
	if m.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.checkTimeout)
		defer cancel()
	}
	online, err := m.provider.Reachable(ctx)
	if err != nil {
		logging.Debug().Err(err).Msg("Connectivity probe failed")
		online = false
	}
	m.Update(online)
}

// Update records the reachability state. An offline to online transition
// triggers a queue release when a request was deferred while offline.
func (m *Module) Update(online bool) {
	prev := m.online.Swap(online)
	metrics.SetOnline(online)
	if prev == online {
		return
	}

	if !online {
		logging.Info().Msg("Network connectivity lost")
		return
	}
	logging.Info().Msg("Network connectivity restored")
	if !m.enabled.Load() || !m.pendingRelease.CompareAndSwap(true, false) {
		return
	}

	m.mu.Lock()
	ctl := m.ctl
	m.mu.Unlock()
	if ctl != nil {
		ctl.ReleaseQueue("connectivity restored")
	}
}

// ShouldQueue implements module.Validator.
func (m *Module) ShouldQueue(t *request.Track) (bool, map[string]any) {
	if !m.enabled.Load() || m.online.Load() {
		return false, nil
	}
	m.pendingRelease.Store(true)
	if m.offlineLog.Allow() {
		logging.Info().Str("uuid", t.UUID()).Msg("Network unreachable, deferring track requests")
	}
	return true, nil
}

// ShouldDrop implements module.Validator.
func (m *Module) ShouldDrop(*request.Track) bool {
	return false
}

// ShouldPurge implements module.Validator.
func (m *Module) ShouldPurge(*request.Track) bool {
	return false
}
