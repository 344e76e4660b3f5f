// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package consent

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
	"github.com/tomtom215/beacon/internal/storage"
)

type countingController struct {
	releases atomic.Int32
	purges   atomic.Int32
}

func (c *countingController) ReleaseQueue(string) { c.releases.Add(1) }
func (c *countingController) PurgeQueue() { c.purges.Add(1) }

func newStore(t *testing.T, backend storage.Backend) (*storage.DiskStorage, *rwqueue.Queue) {
	t.Helper()
	rw := rwqueue.New("test")
	t.Cleanup(rw.Close)
	return storage.NewDiskStorage(backend, "acct.main.dev", ModuleID, rw), rw
}

func track(event string) *request.Track {
	return request.NewTrack(request.Payload{request.KeyEvent: event}, nil)
}

func TestDecisionsByStatus(t *testing.T) {
	tests := []struct {
		status    Status
		wantQueue bool
		wantDrop  bool
		wantPurge bool
	}{
		{StatusUnknown, true, false, false},
		{StatusConsented, false, false, false},
		{StatusNotConsented, false, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			store, _ := newStore(t, storage.NewMemoryBackend())
			m := New(store)
			if err := m.Enable(context.Background(), request.Enable{}); err != nil {
				t.Fatalf("Enable: %v", err)
			}
			m.SetStatus(context.Background(), tt.status, nil)

			queue, data := m.ShouldQueue(track("view"))
			if queue != tt.wantQueue {
				t.Errorf("ShouldQueue = %v, want %v", queue, tt.wantQueue)
			}
			if queue && data[request.KeyQueueReason] != ModuleID {
				t.Errorf("queue_reason = %v, want %s", data[request.KeyQueueReason], ModuleID)
			}
			if got := m.ShouldDrop(track("view")); got != tt.wantDrop {
				t.Errorf("ShouldDrop = %v, want %v", got, tt.wantDrop)
			}
			if got := m.ShouldPurge(track("view")); got != tt.wantPurge {
				t.Errorf("ShouldPurge = %v, want %v", got, tt.wantPurge)
			}
		})
	}
}

func TestAuditEventsAreNotQueued(t *testing.T) {
	store, _ := newStore(t, storage.NewMemoryBackend())
	m := New(store)
	_ = m.Enable(context.Background(), request.Enable{})

	for _, event := range AuditEvents {
		if queue, _ := m.ShouldQueue(track(event)); queue {
			t.Errorf("audit event %s was queued", event)
		}
	}
}

func TestSetStatusNotifiesController(t *testing.T) {
	store, _ := newStore(t, storage.NewMemoryBackend())
	m := New(store)
	ctl := &countingController{}
	m.Attach(ctl)

	m.SetStatus(context.Background(), StatusConsented, []string{"analytics"})
	m.SetStatus(context.Background(), StatusNotConsented, nil)
	m.SetStatus(context.Background(), StatusUnknown, nil)

	if ctl.releases.Load() != 1 || ctl.purges.Load() != 1 {
		t.Errorf("releases=%d purges=%d, want 1 and 1", ctl.releases.Load(), ctl.purges.Load())
	}
}

func TestPreferencesPersist(t *testing.T) {
	backend := storage.NewMemoryBackend()
	store, rw := newStore(t, backend)
	first := New(store)
	first.SetStatus(context.Background(), StatusConsented, []string{"analytics", "email"})
	if err := rw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	store2, _ := newStore(t, backend)
	second := New(store2)
	if err := second.Enable(context.Background(), request.Enable{}); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	p := second.Preferences()
	if p.Status != StatusConsented || len(p.Categories) != 2 {
		t.Errorf("restored preferences = %+v", p)
	}

	data := second.Data(context.Background())
	if data[KeyStatus] != string(StatusConsented) {
		t.Errorf("Data = %v", data)
	}
}

func TestShouldQueueCarriesCurrentDecision(t *testing.T) {
	store, _ := newStore(t, storage.NewMemoryBackend())
	m := New(store)
	_ = m.Enable(context.Background(), request.Enable{})

	queue, data := m.ShouldQueue(track("view"))
	if !queue || data[KeyStatus] != string(StatusUnknown) {
		t.Fatalf("ShouldQueue = %v, %v; want queued with unknown status", queue, data)
	}

	m.SetStatus(context.Background(), StatusConsented, []string{"analytics"})
	queue, data = m.ShouldQueue(track("view"))
	if queue {
		t.Fatal("consented request was queued")
	}
	if data[KeyStatus] != string(StatusConsented) {
		t.Errorf("consent_status = %v, want %s", data[KeyStatus], StatusConsented)
	}
	cats, _ := data[KeyCategories].([]string)
	if len(cats) != 1 || cats[0] != "analytics" {
		t.Errorf("consent_categories = %v, want [analytics]", data[KeyCategories])
	}
	if _, ok := data[request.KeyQueueReason]; ok {
		t.Error("queue_reason returned for a request that is not queued")
	}
}
