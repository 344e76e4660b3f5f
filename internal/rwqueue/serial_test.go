// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package rwqueue

import (
	"context"
	"testing"
	"time"
)

func TestSerialFIFO(t *testing.T) {
	t.Parallel()

	s := NewSerial("test-serial")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var order []int
	for i := 0; i < 50; i++ {
		i := i
		s.Submit(func(context.Context) { order = append(order, i) })
	}
	go func() { _ = s.Serve(ctx) }()

	s.Do(ctx, func(context.Context) {})
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d, want %d", i, v, i)
		}
	}
	if len(order) != 50 {
		t.Errorf("executed %d tasks, want 50", len(order))
	}
}

func TestSerialDoReentrant(t *testing.T) {
	t.Parallel()

	s := NewSerial("test-serial")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	done := make(chan struct{})
	go func() {
		s.Do(ctx, func(inner context.Context) {
			s.Do(inner, func(context.Context) {})
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested Do deadlocked")
	}
}

func TestSerialSurvivesPanic(t *testing.T) {
	t.Parallel()

	s := NewSerial("test-serial")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	s.Submit(func(context.Context) { panic("boom") })
	ran := false
	s.Do(ctx, func(context.Context) { ran = true })
	if !ran {
		t.Error("serial executor stopped after panic")
	}
}

func TestSerialDoReportsAbandonedWait(t *testing.T) {
	t.Parallel()

	// Never served, so the task cannot run before the deadline.
	s := NewSerial("test-serial")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Do(ctx, func(context.Context) {}); err != context.DeadlineExceeded {
		t.Errorf("Do = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestSerialStopReportsDropped(t *testing.T) {
	t.Parallel()

	s := NewSerial("test-serial")
	for i := 0; i < 3; i++ {
		s.Submit(func(context.Context) {})
	}
	if n := s.Stop(); n != 3 {
		t.Errorf("Stop dropped %d tasks, want 3", n)
	}
	if s.Submit(func(context.Context) {}) {
		t.Error("Submit accepted a task after Stop")
	}
	if err := s.Do(context.Background(), func(context.Context) {}); err != ErrStopped {
		t.Errorf("Do after Stop = %v, want %v", err, ErrStopped)
	}
}

func TestScopedSerialTagsTaskContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	s := NewScopedSerial("test-serial", func(ctx context.Context) context.Context {
		return context.WithValue(ctx, key{}, "acme.main.dev")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx) }()

	var got any
	if err := s.Do(ctx, func(inner context.Context) { got = inner.Value(key{}) }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "acme.main.dev" {
		t.Errorf("task context value = %v, want acme.main.dev", got)
	}
}
