// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

// Package consent gates track requests on the user's tracking consent.
//
// Status unknown defers requests to the durable queue, consented lets them
// through and releases the queue, and not consented drops new requests and
// purges queued ones. Consent audit events are never deferred so the consent
// decision itself can be recorded.
package consent

import (
	"context"
	"slices"
	"sync"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/storage"
)

// ModuleID identifies the consent module and its storage blob.
const ModuleID = "consentmanager"

// Payload keys contributed by the consent module.
const (
	KeyStatus     = "consent_status"
	KeyCategories = "consent_categories"
)

// Status is the user's tracking consent.
type Status string

const (
	StatusUnknown      Status = "unknown"
	StatusConsented    Status = "consented"
	StatusNotConsented Status = "notConsented"
)

// AuditEvents are consent bookkeeping events that are never deferred.
var AuditEvents = []string{
	"grant_full_consent",
	"grant_partial_consent",
	"decline_consent",
	"update_consent_cookie",
	"set_dns_state",
}

// Preferences is the persisted consent state.
type Preferences struct {
	Status     Status   `json:"consent_status"`
	Categories []string `json:"consent_categories,omitempty"`
}

// Module is the consent validator and collector.
type Module struct {
	store *storage.DiskStorage

	mu    sync.RWMutex
	prefs Preferences
	ctl   module.Controller
}

// New creates a consent module persisting through store.
func New(store *storage.DiskStorage) *Module {
	return &Module{
		store: store,
		prefs: Preferences{Status: StatusUnknown},
	}
}

// ID implements module.Module.
func (m *Module) ID() string { return ModuleID }

// Attach implements module.Attacher.
func (m *Module) Attach(c module.Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctl = c
}

// Enable loads persisted preferences. Missing preferences mean unknown.
func (m *Module) Enable(ctx context.Context, _ request.Enable) error {
	var prefs Preferences
	if !m.store.Retrieve(ctx, "", &prefs) || prefs.Status == "" {
		prefs = Preferences{Status: StatusUnknown}
	}
	m.mu.Lock()
	m.prefs = prefs
	m.mu.Unlock()
	return nil
}

// Disable implements module.Module.
func (m *Module) Disable(context.Context, request.Disable) {}

// Preferences returns the current consent state.
func (m *Module) Preferences() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.prefs
	p.Categories = slices.Clone(p.Categories)
	return p
}

// SetStatus records a consent decision, persists it and lets the chain react:
// consent releases the queue, refusal purges it.
func (m *Module) SetStatus(ctx context.Context, status Status, categories []string) {
	prefs := Preferences{Status: status, Categories: slices.Clone(categories)}

	m.mu.Lock()
	m.prefs = prefs
	ctl := m.ctl
	m.mu.Unlock()

	m.store.Save(ctx, "", prefs, func(err error) {
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to persist consent preferences")
		}
	})
	logging.Info().Str("status", string(status)).Strs("categories", categories).Msg("Consent status updated")

	if ctl == nil {
		return
	}
	switch status {
	case StatusConsented:
		ctl.ReleaseQueue("consent granted")
	case StatusNotConsented:
		ctl.PurgeQueue()
	}
}

// Data implements module.Collector.
func (m *Module) Data(context.Context) map[string]any {
	return payloadData(m.Preferences())
}

func payloadData(p Preferences) map[string]any {
	data := map[string]any{KeyStatus: string(p.Status)}
	if len(p.Categories) > 0 {
		data[KeyCategories] = p.Categories
	}
	return data
}

// ShouldQueue defers requests until consent is known. Once it is, the
// current consent data is returned so released requests carry the decision
// instead of the status they were queued with.
func (m *Module) ShouldQueue(t *request.Track) (bool, map[string]any) {
	if slices.Contains(AuditEvents, t.Event()) {
		return false, nil
	}
	p := m.Preferences()
	data := payloadData(p)
	if p.Status != StatusUnknown {
		return false, data
	}
	data[request.KeyQueueReason] = ModuleID
	return true, data
}

// ShouldDrop drops every request once consent was refused.
func (m *Module) ShouldDrop(*request.Track) bool {
	return m.Preferences().Status == StatusNotConsented
}

// ShouldPurge discards queued requests once consent was refused.
func (m *Module) ShouldPurge(*request.Track) bool {
	return m.Preferences().Status == StatusNotConsented
}
