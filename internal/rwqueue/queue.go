// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package rwqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/beacon/internal/logging"
)

// ErrClosed is returned by Flush after the queue has been closed.
var ErrClosed = errors.New("rwqueue: closed")

type scopeKey struct{}

// scope marks a context as executing inside a specific queue.
type scope struct {
	q       *Queue
	barrier bool
}

// Queue is a reader-writer execution context with a reentrancy escape.
type Queue struct {
	label string

	mu        sync.Mutex
	cond      *sync.Cond
	readers   int
	writing   bool
	pending   []func(context.Context)
	submitted uint64
	completed uint64
	closed    bool
	started   bool
	timers    map[*time.Timer]struct{}
	done      chan struct{}
}

// New creates a Queue. The writer goroutine starts lazily on the first write.
func New(label string) *Queue {
	q := &Queue{
		label:  label,
		timers: make(map[*time.Timer]struct{}),
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Label returns the queue label.
func (q *Queue) Label() string {
	return q.label
}

func (q *Queue) inside(ctx context.Context) (scope, bool) {
	if ctx == nil {
		return scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(scope)
	if !ok || s.q != q {
		return scope{}, false
	}
	return s, true
}

func (q *Queue) enter(ctx context.Context, barrier bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, scope{q: q, barrier: barrier})
}

// Read executes fn synchronously with shared access. Readers run concurrently
// with each other but never with a writer, and wait for every write that was
// submitted before the call.
func (q *Queue) Read(ctx context.Context, fn func(ctx context.Context)) {
	if _, ok := q.inside(ctx); ok {
		fn(ctx)
		return
	}

	q.mu.Lock()
	target := q.submitted
	for q.writing || q.completed < target {
		q.cond.Wait()
	}
	q.readers++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.readers--
		q.cond.Broadcast()
		q.mu.Unlock()
	}()

	fn(q.enter(ctx, false))
}

// Get is Read with a return value.
func Get[T any](q *Queue, ctx context.Context, fn func(ctx context.Context) T) T {
	var out T
	q.Read(ctx, func(ctx context.Context) {
		out = fn(ctx)
	})
	return out
}

// Write submits fn for exclusive execution and returns immediately.
// Called from inside a write block, fn runs inline.
// Writes submitted after Close are discarded.
func (q *Queue) Write(ctx context.Context, fn func(ctx context.Context)) {
	if s, ok := q.inside(ctx); ok && s.barrier {
		fn(ctx)
		return
	}
	q.submit(ctx, fn)
}

// WriteSync submits fn for exclusive execution and waits until it has run.
// From inside a write block fn runs inline. From inside a read block the
// call would deadlock, so the write is submitted asynchronously instead.
func (q *Queue) WriteSync(ctx context.Context, fn func(ctx context.Context)) {
	if s, ok := q.inside(ctx); ok {
		if s.barrier {
			fn(ctx)
		} else {
			q.submit(ctx, fn)
		}
		return
	}

	ran := make(chan struct{})
	if !q.submit(ctx, func(ctx context.Context) {
		defer close(ran)
		fn(ctx)
	}) {
		return
	}
	<-ran
}

// WriteAfter schedules fn for exclusive execution after delay without
// blocking the caller.
func (q *Queue) WriteAfter(ctx context.Context, delay time.Duration, fn func(ctx context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		q.mu.Unlock()
		q.submit(ctx, fn)
	})
	q.timers[timer] = struct{}{}
}

func (q *Queue) submit(ctx context.Context, fn func(ctx context.Context)) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	// Strip any read scope so the writer re-marks the context itself.
	base := context.WithValue(ctx, scopeKey{}, nil)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.pending = append(q.pending, func(context.Context) { fn(q.enter(base, true)) })
	q.submitted++
	if !q.started {
		q.started = true
		go q.run()
	}
	q.cond.Broadcast()
	return true
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		for q.readers > 0 {
			q.cond.Wait()
		}
		q.writing = true
		q.mu.Unlock()

		q.execute(fn)

		q.mu.Lock()
		q.writing = false
		q.completed++
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) execute(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("queue", q.label).Interface("panic", r).Msg("Recovered panic in write block")
		}
	}()
	fn(nil)
}

// Flush blocks until every write submitted before the call has executed.
func (q *Queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed && q.completed >= q.submitted {
		return ErrClosed
	}
	target := q.submitted
	for q.completed < target {
		q.cond.Wait()
	}
	return nil
}

// Close cancels pending delayed writes, drains already submitted writes and
// stops the writer goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	started := q.started
	q.cond.Broadcast()
	q.mu.Unlock()

	if started {
		<-q.done
	}
}
