// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package batching defers track requests until enough have accumulated to be
// released together.
package batching

import (
	"context"
	"slices"
	"sync"

	"github.com/tomtom215/beacon/internal/dispatchqueue"
	"github.com/tomtom215/beacon/internal/request"
)

// ModuleID identifies the batching validator.
const ModuleID = "batching"

// DefaultBypassEvents are events that are never batched.
var DefaultBypassEvents = []string{
	"update_consent_cookie",
	"set_dirty_bit",
	"grant_full_consent",
	"grant_partial_consent",
	"decline_consent",
}

// Settings control when requests are batched.
type Settings struct {
	Enabled       bool
	BatchSize     int
	DispatchAfter int
	MaxQueueSize  int
	// BypassEvents are added to DefaultBypassEvents.
	BypassEvents []string
}

// Module is the batching validator.
type Module struct {
	mu       sync.RWMutex
	settings Settings
}

// New creates a batching validator.
func New(s Settings) *Module {
	return &Module{settings: s}
}

// ID implements module.Module.
func (m *Module) ID() string { return ModuleID }

// Enable implements module.Module.
func (m *Module) Enable(context.Context, request.Enable) error { return nil }

// Disable implements module.Module.
func (m *Module) Disable(context.Context, request.Disable) {}

// Configure replaces the settings.
func (m *Module) Configure(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

// Settings returns the active settings.
func (m *Module) Settings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// ShouldQueue defers named events while batching is active. Released
// requests (bypass_queue) and bypass events pass through.
func (m *Module) ShouldQueue(t *request.Track) (bool, map[string]any) {
	payload := t.Payload()
	if payload.Bool(request.KeyBypassQueue) {
		return false, nil
	}

	s := m.Settings()
	if !s.Enabled || s.DispatchAfter <= 1 || s.BatchSize <= 1 || s.MaxQueueSize <= 1 {
		return false, nil
	}

	event := payload.String(request.KeyEvent)
	if event == "" || slices.Contains(DefaultBypassEvents, event) || slices.Contains(s.BypassEvents, event) {
		return false, nil
	}
	return true, map[string]any{request.KeyQueueReason: dispatchqueue.ReasonBatching}
}

// ShouldDrop implements module.Validator.
func (m *Module) ShouldDrop(*request.Track) bool { return false }

// ShouldPurge implements module.Validator.
func (m *Module) ShouldPurge(*request.Track) bool { return false }
