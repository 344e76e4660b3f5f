// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package batching

import (
	"testing"

	"github.com/tomtom215/beacon/internal/dispatchqueue"
	"github.com/tomtom215/beacon/internal/request"
)

func active() Settings {
	return Settings{Enabled: true, BatchSize: 10, DispatchAfter: 5, MaxQueueSize: 40}
}

func TestShouldQueue(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		payload  request.Payload
		want     bool
	}{
		{"batching active", active(), request.Payload{request.KeyEvent: "view"}, true},
		{"batching disabled", Settings{BatchSize: 10, DispatchAfter: 5, MaxQueueSize: 40}, request.Payload{request.KeyEvent: "view"}, false},
		{"dispatch after one", Settings{Enabled: true, BatchSize: 10, DispatchAfter: 1, MaxQueueSize: 40}, request.Payload{request.KeyEvent: "view"}, false},
		{"batch size one", Settings{Enabled: true, BatchSize: 1, DispatchAfter: 5, MaxQueueSize: 40}, request.Payload{request.KeyEvent: "view"}, false},
		{"queue size one", Settings{Enabled: true, BatchSize: 10, DispatchAfter: 5, MaxQueueSize: 1}, request.Payload{request.KeyEvent: "view"}, false},
		{"no event name", active(), request.Payload{request.KeyReleaseRequest: true}, false},
		{"default bypass event", active(), request.Payload{request.KeyEvent: "decline_consent"}, false},
		{"released request", active(), request.Payload{request.KeyEvent: "view", request.KeyBypassQueue: true}, false},
		{"configured bypass event", Settings{Enabled: true, BatchSize: 10, DispatchAfter: 5, MaxQueueSize: 40, BypassEvents: []string{"purchase"}}, request.Payload{request.KeyEvent: "purchase"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.settings)
			got, data := m.ShouldQueue(request.NewTrack(tt.payload, nil))
			if got != tt.want {
				t.Errorf("ShouldQueue = %v, want %v", got, tt.want)
			}
			if got && data[request.KeyQueueReason] != dispatchqueue.ReasonBatching {
				t.Errorf("queue_reason = %v", data[request.KeyQueueReason])
			}
		})
	}
}

func TestConfigure(t *testing.T) {
	m := New(Settings{})
	tr := request.NewTrack(request.Payload{request.KeyEvent: "view"}, nil)
	if q, _ := m.ShouldQueue(tr); q {
		t.Fatal("expected pass-through before Configure")
	}
	m.Configure(active())
	if q, _ := m.ShouldQueue(tr); !q {
		t.Error("expected queueing after Configure")
	}
	if m.ShouldDrop(tr) || m.ShouldPurge(tr) {
		t.Error("batching never drops or purges")
	}
}
