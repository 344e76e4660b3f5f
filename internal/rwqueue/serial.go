// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package rwqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/beacon/internal/logging"
)

// ErrStopped is returned by Do after Stop.
var ErrStopped = errors.New("rwqueue: serial executor stopped")

type serialKey struct{}

// Serial executes submitted tasks one at a time in FIFO order on a single
// goroutine. Tasks submitted before Serve starts are buffered.
type Serial struct {
	name  string
	scope func(context.Context) context.Context

	mu      sync.Mutex
	tasks   []func(context.Context)
	wake    chan struct{}
	stopped bool
}

// NewSerial creates a serial executor.
func NewSerial(name string) *Serial {
	return &Serial{
		name: name,
		wake: make(chan struct{}, 1),
	}
}

// NewScopedSerial creates a serial executor whose task contexts pass
// through scope, e.g. to tag them for logging.
func NewScopedSerial(name string, scope func(context.Context) context.Context) *Serial {
	s := NewSerial(name)
	s.scope = scope
	return s
}

// String implements fmt.Stringer for suture service naming.
func (s *Serial) String() string {
	return s.name
}

// Submit enqueues fn and returns immediately. It reports false once the
// executor has been stopped.
func (s *Serial) Submit(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the serial goroutine and waits for it to finish.
// Called with a context handed out by this executor, fn runs inline.
// When ctx ends first Do returns ctx.Err(); fn may still run later, so
// callers must not read what fn writes unless Do returned nil.
func (s *Serial) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if owner, ok := ctx.Value(serialKey{}).(*Serial); ok && owner == s {
		fn(ctx)
		return nil
	}
	done := make(chan struct{})
	if !s.Submit(func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks.
func (s *Serial) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Serve processes tasks until ctx is canceled. It implements suture.Service.
func (s *Serial) Serve(ctx context.Context) error {
	taskCtx := context.WithValue(ctx, serialKey{}, s)
	if s.scope != nil {
		taskCtx = s.scope(taskCtx)
	}
	for {
		for {
			fn, ok := s.next()
			if !ok {
				break
			}
			if err := s.run(taskCtx, fn); err != nil {
				logging.Error().Err(err).Str("executor", s.name).Msg("Serial task failed")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// Stop discards queued tasks, rejects new ones and returns the number of
// tasks that never ran.
func (s *Serial) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	dropped := len(s.tasks)
	s.tasks = nil
	return dropped
}

func (s *Serial) next() (func(context.Context), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return nil, false
	}
	fn := s.tasks[0]
	s.tasks[0] = nil
	s.tasks = s.tasks[1:]
	return fn, true
}

func (s *Serial) run(ctx context.Context, fn func(context.Context)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in serial task: %v", r)
		}
	}()
	fn(ctx)
	return nil
}
