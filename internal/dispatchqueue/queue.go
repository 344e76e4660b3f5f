// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatchqueue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
	"github.com/tomtom215/beacon/internal/storage"
)

// ModuleName is the DiskStorage module name of the queue blob.
const ModuleName = "dispatchqueue"

// Defaults applied when no limit is configured.
const (
	DefaultMaxSize = 40
	DefaultMaxAge  = 7 * 24 * time.Hour
)

// Queue reasons recorded in the payload.
const (
	ReasonBatching            = "batching_enabled"
	ReasonDispatchersNotReady = "dispatchers_not_ready"
)

var (
	// ErrPurged is reported to the completion of a request whose queued entry
	// was discarded.
	ErrPurged = errors.New("dispatchqueue: request purged from queue")

	// ErrCleared is reported when the queue is cleared explicitly.
	ErrCleared = errors.New("dispatchqueue: queue cleared")
)

// Entry is a deferred track request.
type Entry struct {
	UUID       string          `json:"uuid"`
	Payload    request.Payload `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Limits bound the queue. Zero values disable the respective bound.
type Limits struct {
	MaxSize int
	MaxAge  time.Duration
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{MaxSize: DefaultMaxSize, MaxAge: DefaultMaxAge}
}

// Queue is the durable dispatch queue of one pipeline instance.
type Queue struct {
	store    *storage.DiskStorage
	rw       *rwqueue.Queue
	instance string
	now      func() time.Time

	// Guarded by rw.
	entries []Entry
	limits  Limits

	mu          sync.Mutex
	completions map[string]request.Completion
}

// New creates an empty queue persisting through store. Call Restore to load
// previously persisted entries.
func New(store *storage.DiskStorage, rw *rwqueue.Queue, instance string) *Queue {
	return &Queue{
		store:       store,
		rw:          rw,
		instance:    instance,
		now:         time.Now,
		limits:      DefaultLimits(),
		completions: make(map[string]request.Completion),
	}
}

// SetClock overrides the time source. Intended for tests.
func (q *Queue) SetClock(now func() time.Time) {
	q.now = now
}

// SetLimits replaces the bounds and applies them immediately.
func (q *Queue) SetLimits(ctx context.Context, limits Limits) {
	q.rw.Write(ctx, func(ctx context.Context) {
		q.limits = limits
		if q.trim() {
			q.persist(ctx)
		}
	})
}

// Restore loads the persisted queue, replacing the in-memory entries, and
// returns the number of entries restored. Absent or unreadable blobs restore
// an empty queue.
func (q *Queue) Restore(ctx context.Context) int {
	var n int
	q.rw.WriteSync(ctx, func(ctx context.Context) {
		var stored []Entry
		if !q.store.Retrieve(ctx, "", &stored) {
			stored = nil
		}
		slices.SortStableFunc(stored, func(a, b Entry) int {
			return a.EnqueuedAt.Compare(b.EnqueuedAt)
		})
		q.entries = stored
		if q.trim() {
			q.persist(ctx)
		}
		n = len(q.entries)
		metrics.SetQueueDepth(q.instance, n)
	})
	return n
}

// Enqueue defers t. The reason data is merged into the payload; queue_reason
// is only set when absent so the first recorded reason survives replays.
// was_queued is always set. A bypass marker from a previous release is removed.
func (q *Queue) Enqueue(ctx context.Context, t *request.Track, reason map[string]any) {
	for k, v := range reason {
		if k == request.KeyQueueReason {
			continue
		}
		t.Merge(map[string]any{k: v})
	}
	if r, ok := reason[request.KeyQueueReason]; ok {
		t.MergeMissing(map[string]any{request.KeyQueueReason: r})
	}
	t.Merge(map[string]any{request.KeyWasQueued: true})
	t.Delete(request.KeyBypassQueue)

	entry := Entry{
		UUID:       t.UUID(),
		Payload:    t.Payload(),
		EnqueuedAt: q.now().UTC(),
	}
	if c := t.Completion(); c != nil {
		q.mu.Lock()
		q.completions[entry.UUID] = c
		q.mu.Unlock()
	}

	reasonLabel := entry.Payload.String(request.KeyQueueReason)
	if reasonLabel == "" {
		reasonLabel = "unspecified"
	}
	metrics.RecordQueued(reasonLabel)
	logging.Ctx(ctx).Info().
		Str("uuid", entry.UUID).
		Str("event", entry.Payload.String(request.KeyEvent)).
		Str("reason", reasonLabel).
		Msg("Track request queued")

	q.rw.Write(ctx, func(ctx context.Context) {
		q.entries = append(q.entries, entry)
		q.trim()
		q.persist(ctx)
	})
}

// ReleaseAll drains the queue. Each entry is rebuilt as a track request
// carrying the original UUID, payload and completion plus a bypass marker,
// and the requests are handed to submit in FIFO order in one call. The
// empty queue is persisted afterwards. submit is called on the writer
// goroutine and must not block.
func (q *Queue) ReleaseAll(ctx context.Context, submit func([]*request.Track)) {
	q.rw.Write(ctx, func(ctx context.Context) {
		q.trim()
		drained := q.entries
		q.entries = nil
		if len(drained) == 0 {
			return
		}

		tracks := make([]*request.Track, len(drained))
		for i, e := range drained {
			payload := e.Payload.Clone()
			payload[request.KeyBypassQueue] = true
			tracks[i] = request.Restore(e.UUID, payload, q.takeCompletion(e.UUID))
		}
		submit(tracks)
		q.persist(ctx)
		metrics.RecordReleased(len(drained))
		logging.Ctx(ctx).Info().Int("count", len(drained)).Msg("Released queued track requests")
	})
}

// Purge removes the entries for which shouldPurge returns true and fails
// their completions with ErrPurged.
func (q *Queue) Purge(ctx context.Context, shouldPurge func(*request.Track) bool) {
	q.rw.Write(ctx, func(ctx context.Context) {
		kept := q.entries[:0:0]
		var purged []Entry
		for _, e := range q.entries {
			if shouldPurge(request.Restore(e.UUID, e.Payload, nil)) {
				purged = append(purged, e)
				continue
			}
			kept = append(kept, e)
		}
		if len(purged) == 0 {
			return
		}
		q.entries = kept
		q.discard("validator", purged, ErrPurged)
		q.persist(ctx)
	})
}

// Clear removes every entry.
func (q *Queue) Clear(ctx context.Context) {
	q.rw.Write(ctx, func(ctx context.Context) {
		if len(q.entries) == 0 {
			return
		}
		removed := q.entries
		q.entries = nil
		q.discard("clear", removed, ErrCleared)
		q.persist(ctx)
	})
}

// Unload drops the in-memory entries without touching the persisted blob,
// so a later Restore resumes from disk.
func (q *Queue) Unload(ctx context.Context) {
	q.rw.Write(ctx, func(context.Context) {
		q.entries = nil
	})
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) int {
	return rwqueue.Get(q.rw, ctx, func(context.Context) int {
		return len(q.entries)
	})
}

// Entries returns a copy of the queued entries in FIFO order.
func (q *Queue) Entries(ctx context.Context) []Entry {
	return rwqueue.Get(q.rw, ctx, func(context.Context) []Entry {
		out := make([]Entry, len(q.entries))
		for i, e := range q.entries {
			e.Payload = e.Payload.Clone()
			out[i] = e
		}
		return out
	})
}

// trim applies the count and age bounds. Must run inside a write.
func (q *Queue) trim() bool {
	var modified bool

	if q.limits.MaxAge > 0 {
		cutoff := q.now().Add(-q.limits.MaxAge)
		idx := 0
		for idx < len(q.entries) && q.entries[idx].EnqueuedAt.Before(cutoff) {
			idx++
		}
		if idx > 0 {
			q.discard("age", q.entries[:idx], ErrPurged)
			q.entries = slices.Clone(q.entries[idx:])
			modified = true
		}
	}

	if q.limits.MaxSize > 0 && len(q.entries) > q.limits.MaxSize {
		over := len(q.entries) - q.limits.MaxSize
		q.discard("count", q.entries[:over], ErrPurged)
		q.entries = slices.Clone(q.entries[over:])
		modified = true
	}

	return modified
}

func (q *Queue) discard(cause string, entries []Entry, err error) {
	for _, e := range entries {
		if c := q.takeCompletion(e.UUID); c != nil {
			go c(request.Result{Success: false, Err: err})
		}
	}
	metrics.RecordPurged(cause, len(entries))
	logging.Debug().Str("cause", cause).Int("count", len(entries)).Msg("Discarded queued track requests")
}

func (q *Queue) takeCompletion(id string) request.Completion {
	q.mu.Lock()
	defer q.mu.Unlock()
	c := q.completions[id]
	delete(q.completions, id)
	return c
}

// persist saves the current entries. Must run inside a write.
func (q *Queue) persist(ctx context.Context) {
	entries := q.entries
	if entries == nil {
		entries = []Entry{}
	}
	q.store.Save(ctx, "", entries, func(err error) {
		if err != nil {
			logging.Warn().Err(err).Str("instance", q.instance).Msg("Failed to persist dispatch queue")
		}
	})
	metrics.SetQueueDepth(q.instance, len(entries))
}
