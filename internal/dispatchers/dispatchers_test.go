// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatchers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/request"
)

var _ module.BatchDispatcher = (*Collect)(nil)

func TestCollectPostsPayload(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewCollect(CollectConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer k"}})
	if err := c.Enable(context.Background(), request.Enable{}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	tr := request.NewTrack(request.Payload{request.KeyEvent: "purchase", "total": 12.5}, nil)
	info, err := c.Dispatch(context.Background(), tr)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if info["status"] != http.StatusNoContent {
		t.Errorf("info = %v", info)
	}
	if got[request.KeyEvent] != "purchase" || got["total"] != 12.5 {
		t.Errorf("posted body = %v", got)
	}
	if auth != "Bearer k" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestCollectStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewCollect(CollectConfig{URL: srv.URL})
	_, err := c.Dispatch(context.Background(), request.NewTrack(request.Payload{request.KeyEvent: "x"}, nil))
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("Dispatch error = %v, want status 503", err)
	}
}

func TestCollectBatchPostsEventsInOrder(t *testing.T) {
	var got struct {
		Events []map[string]any `json:"events"`
	}
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCollect(CollectConfig{URL: srv.URL})
	batch := []*request.Track{
		request.NewTrack(request.Payload{request.KeyEvent: "a"}, nil),
		request.NewTrack(request.Payload{request.KeyEvent: "b"}, nil),
	}
	info, err := c.DispatchBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("DispatchBatch: %v", err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
	if info["status"] != http.StatusOK || info["count"] != 2 {
		t.Errorf("info = %v", info)
	}
	if len(got.Events) != 2 || got.Events[0][request.KeyEvent] != "a" || got.Events[1][request.KeyEvent] != "b" {
		t.Errorf("posted events = %v", got.Events)
	}
}

func TestCollectBatchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCollect(CollectConfig{URL: srv.URL})
	batch := []*request.Track{request.NewTrack(request.Payload{request.KeyEvent: "a"}, nil)}
	if _, err := c.DispatchBatch(context.Background(), batch); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("DispatchBatch error = %v, want status 502", err)
	}
}

func TestCollectRequiresEndpoint(t *testing.T) {
	c := NewCollect(CollectConfig{})
	if err := c.Enable(context.Background(), request.Enable{}); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Enable = %v, want ErrNoEndpoint", err)
	}
	if c.ID() != "collect" {
		t.Errorf("ID() = %q", c.ID())
	}
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewLogWithLogger(logging.NewTestLogger(&buf))

	tr := request.NewTrack(request.Payload{request.KeyEvent: "signup"}, nil)
	if _, err := d.Dispatch(context.Background(), tr); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["event"] != "signup" || entry["uuid"] != tr.UUID() {
		t.Errorf("log entry = %v", entry)
	}
}
