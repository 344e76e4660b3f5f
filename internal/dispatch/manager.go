// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/beacon/internal/dispatchqueue"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
)

// Manager is the module chain of one pipeline instance.
//
// Every field below the dependencies is owned by the serial executor.
type Manager struct {
	cfg     Config
	serial  *rwqueue.Serial
	rw      *rwqueue.Queue
	queue   *dispatchqueue.Queue
	modules []module.Module
	log     zerolog.Logger

	enabled     bool
	settings    Settings
	collectors  []module.Collector
	validators  []module.Validator
	lanes       []*lane
	enableError error

	// Track requests accepted but not yet completed or queued. The value is
	// true once the request was handed to the dispatcher lanes.
	pendingMu sync.Mutex
	pending   map[*request.Track]bool
}

// NewManager creates a chain over modules, visited in the given order.
// Modules implementing module.Attacher receive the manager as Controller.
// The serial executor must be served (see supervisor) for the chain to make
// progress.
func NewManager(cfg Config, serial *rwqueue.Serial, rw *rwqueue.Queue, queue *dispatchqueue.Queue, modules ...module.Module) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      cfg,
		serial:   serial,
		rw:       rw,
		queue:    queue,
		modules:  modules,
		log:      logging.WithComponent("dispatch").With().Str("instance", cfg.Instance).Logger(),
		settings: DefaultSettings(),
		pending:  make(map[*request.Track]bool),
	}
	for _, mod := range modules {
		if a, ok := mod.(module.Attacher); ok {
			a.Attach(m)
		}
	}
	return m, nil
}

// Enable enables every module in order. Modules that fail are recorded in the
// returned error and excluded from the chain; the others stay active. The
// durable queue is restored and, when it is not empty, a release is scheduled.
func (m *Manager) Enable(ctx context.Context, req request.Enable) error {
	var result error
	err := m.serial.Do(ctx, func(ctx context.Context) {
		if m.enabled {
			result = m.enableError
			return
		}

		var errs []error
		for _, mod := range m.modules {
			if err := m.enableModule(ctx, mod, req); err != nil {
				errs = append(errs, &ModuleError{Module: mod.ID(), Err: err})
				m.log.Error().Err(err).Str("module", mod.ID()).Msg("Module failed to enable")
				continue
			}
			if c, ok := mod.(module.Collector); ok {
				m.collectors = append(m.collectors, c)
			}
			if v, ok := mod.(module.Validator); ok {
				m.validators = append(m.validators, v)
			}
			if d, ok := mod.(module.Dispatcher); ok {
				m.lanes = append(m.lanes, startLane(d, m.cfg))
			}
		}

		m.queue.SetLimits(ctx, m.settings.Queue)
		restored := m.queue.Restore(ctx)
		m.enabled = true
		m.enableError = errors.Join(errs...)
		result = m.enableError

		m.log.Info().
			Int("collectors", len(m.collectors)).
			Int("validators", len(m.validators)).
			Int("dispatchers", len(m.lanes)).
			Int("restored", restored).
			Int("failed", len(errs)).
			Msg("Module chain enabled")

		if restored > 0 {
			m.rw.WriteAfter(context.Background(), m.cfg.StartupReleaseDelay, func(context.Context) {
				m.ReleaseQueue("startup")
			})
		}
	})
	if err != nil {
		return err
	}
	return result
}

func (m *Manager) enableModule(ctx context.Context, mod module.Module, req request.Enable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enable: %v", r)
		}
	}()
	return mod.Enable(ctx, req)
}

// Disable tears down every module in reverse order and unloads the queue.
// Persisted queue entries are kept for the next Enable. Requests the lanes
// could not deliver within the grace period complete with ErrShutdown.
func (m *Manager) Disable(ctx context.Context) error {
	return m.serial.Do(ctx, func(ctx context.Context) {
		if !m.enabled {
			return
		}
		for i := len(m.modules) - 1; i >= 0; i-- {
			m.modules[i].Disable(ctx, request.Disable{})
		}
		grace := m.cfg.DispatchTimeout
		if grace <= 0 {
			grace = 5 * time.Second
		}
		for _, l := range m.lanes {
			l.stop(grace)
		}
		if n := m.failPending(true); n > 0 {
			m.log.Warn().Int("count", n).Msg("Undelivered track requests failed on disable")
		}
		m.queue.Unload(ctx)

		m.collectors = nil
		m.validators = nil
		m.lanes = nil
		m.enabled = false
		m.enableError = nil
		m.log.Info().Msg("Module chain disabled")
	})
}

// Configure applies runtime settings.
func (m *Manager) Configure(s Settings) {
	m.serial.Submit(func(ctx context.Context) {
		m.settings = s
		m.queue.SetLimits(ctx, s.Queue)
		if m.enabled && m.thresholdReached(ctx) {
			m.release(ctx, "dispatch limit reached")
		}
	})
}

// Settings returns the active runtime settings once previously submitted
// work has run, or ctx.Err() when ctx ends first.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	ch := make(chan Settings, 1)
	if err := m.serial.Do(ctx, func(context.Context) {
		ch <- m.settings
	}); err != nil {
		return Settings{}, err
	}
	return <-ch, nil
}

// Track submits t to the chain and returns immediately. The completion of t
// fires exactly once: after delivery, on drop, on rejection, after a queued
// copy has been released and delivered, or with ErrShutdown when the chain
// stops first.
func (m *Manager) Track(t *request.Track) {
	metrics.RecordSubmitted()
	m.hold(t)
	if !m.serial.Submit(func(ctx context.Context) {
		m.process(ctx, t, false)
	}) {
		m.reject(t, ErrShutdown)
	}
}

// Close stops the chain executor. Track requests still waiting on it or on
// a dispatcher lane complete with ErrShutdown. Call Disable first to give
// the lanes a chance to finish.
func (m *Manager) Close() {
	dropped := m.serial.Stop()
	failed := m.failPending(false)
	if dropped > 0 || failed > 0 {
		m.log.Warn().Int("dropped_tasks", dropped).Int("failed", failed).
			Msg("Chain closed with pending work")
	}
}

// Handle routes a custom coordination request to every module implementing
// module.Handler. The chain itself reacts to release and purge requests.
func (m *Manager) Handle(req request.Custom) {
	m.serial.Submit(func(ctx context.Context) {
		switch req.Name {
		case request.CustomReleaseQueue:
			m.release(ctx, "custom request")
		case request.CustomPurgeQueue:
			m.purgeQueued(ctx)
		}
		for _, mod := range m.modules {
			if h, ok := mod.(module.Handler); ok {
				h.Handle(ctx, req)
			}
		}
	})
}

// ReleaseQueue implements module.Controller.
func (m *Manager) ReleaseQueue(reason string) {
	m.serial.Submit(func(ctx context.Context) {
		m.release(ctx, reason)
	})
}

// PurgeQueue implements module.Controller.
func (m *Manager) PurgeQueue() {
	m.serial.Submit(func(ctx context.Context) {
		m.purgeQueued(ctx)
	})
}

// QueueLen returns the number of deferred requests.
func (m *Manager) QueueLen(ctx context.Context) int {
	return m.queue.Len(ctx)
}

func (m *Manager) process(ctx context.Context, t *request.Track, replay bool) {
	if m.admit(ctx, t, replay) {
		m.deliver([]*request.Track{t}, m.activeLanes())
	}
}

// admit runs t through the collectors and validators. It reports true when
// t must be delivered now; otherwise t was rejected, dropped or queued.
// Validator data is merged even when the validator does not queue, so a
// replayed request carries the current state instead of the state recorded
// when it was queued.
func (m *Manager) admit(ctx context.Context, t *request.Track, replay bool) bool {
	switch {
	case !m.enabled:
		m.reject(t, ErrNotEnabled)
		return false
	case m.settings.Disabled:
		m.reject(t, ErrDisabledByPolicy)
		return false
	}

	if !replay {
		m.collect(ctx, t)
	}

	for _, v := range m.validators {
		if v.ShouldDrop(t) {
			metrics.RecordDropped(v.ID())
			m.log.Info().Str("validator", v.ID()).Str("uuid", t.UUID()).Str("event", t.Event()).
				Msg("Track request dropped by validator")
			t.AppendResponse(request.ModuleResponse{Module: v.ID(), Success: false, Err: ErrDropped})
			res := t.Complete()
			metrics.RecordCompleted(res.Success)
			m.settle(t)
			return false
		}
	}

	var reasons map[string]any
	for _, v := range m.validators {
		queue, data := v.ShouldQueue(t)
		if !queue {
			t.Merge(data)
			continue
		}
		if reasons == nil {
			reasons = make(map[string]any, len(data)+1)
		}
		for k, val := range data {
			if _, ok := reasons[k]; !ok {
				reasons[k] = val
			}
		}
		m.log.Debug().Str("validator", v.ID()).Str("uuid", t.UUID()).Msg("Track request deferred by validator")
	}
	if reasons != nil {
		m.enqueue(ctx, t, reasons)
		return false
	}

	if len(m.activeLanes()) == 0 {
		m.enqueue(ctx, t, map[string]any{request.KeyQueueReason: dispatchqueue.ReasonDispatchersNotReady})
		return false
	}
	return true
}

func (m *Manager) activeLanes() []*lane {
	if len(m.settings.DisabledDispatchers) == 0 {
		return m.lanes
	}
	active := make([]*lane, 0, len(m.lanes))
	for _, l := range m.lanes {
		if !m.settings.DisabledDispatchers[l.dispatcher.ID()] {
			active = append(active, l)
		}
	}
	return active
}

func (m *Manager) collect(ctx context.Context, t *request.Track) {
	for _, c := range m.collectors {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error().Str("collector", c.ID()).Interface("panic", r).Msg("Collector panicked")
				}
			}()
			t.MergeMissing(c.Data(ctx))
		}()
	}
}

func (m *Manager) enqueue(ctx context.Context, t *request.Track, reasons map[string]any) {
	// The queue owns the completion from here on.
	m.settle(t)
	m.queue.Enqueue(ctx, t, reasons)
	m.purgeQueued(ctx)
	if m.thresholdReached(ctx) {
		m.release(ctx, "dispatch limit reached")
	}
}

// deliver hands tracks to every lane. With a batch size above one, lanes
// whose dispatcher implements module.BatchDispatcher receive the tracks in
// chunks of that size; the other lanes receive them one at a time. A track
// completes once every lane has answered for it.
func (m *Manager) deliver(tracks []*request.Track, lanes []*lane) {
	remaining := make(map[*request.Track]*atomic.Int32, len(tracks))
	for _, t := range tracks {
		t.Delete(request.KeyBypassQueue)
		n := new(atomic.Int32)
		n.Store(int32(len(lanes)))
		remaining[t] = n
		m.handOff(t)
	}
	done := func(t *request.Track) {
		if remaining[t].Add(-1) == 0 {
			res := t.Complete()
			metrics.RecordCompleted(res.Success)
			m.settle(t)
		}
	}

	size := m.settings.BatchSize
	for _, l := range lanes {
		if size > 1 && len(tracks) > 1 && l.batches() {
			for chunk := range slices.Chunk(tracks, size) {
				l.deliverBatch(chunk, done)
			}
			continue
		}
		for _, t := range tracks {
			l.deliver(t, done)
		}
	}
}

func (m *Manager) reject(t *request.Track, err error) {
	m.log.Debug().Err(err).Str("uuid", t.UUID()).Msg("Track request rejected")
	t.Fail(err)
	metrics.RecordCompleted(false)
	m.settle(t)
}

func (m *Manager) hold(t *request.Track) {
	m.pendingMu.Lock()
	m.pending[t] = false
	m.pendingMu.Unlock()
}

func (m *Manager) handOff(t *request.Track) {
	m.pendingMu.Lock()
	m.pending[t] = true
	m.pendingMu.Unlock()
}

func (m *Manager) settle(t *request.Track) {
	m.pendingMu.Lock()
	delete(m.pending, t)
	m.pendingMu.Unlock()
}

// failPending completes pending requests with ErrShutdown and returns how
// many were still open. With lanesOnly, requests that have not reached the
// lanes yet are left alone.
func (m *Manager) failPending(lanesOnly bool) int {
	m.pendingMu.Lock()
	var failed []*request.Track
	for t, handedOff := range m.pending {
		if lanesOnly && !handedOff {
			continue
		}
		failed = append(failed, t)
		delete(m.pending, t)
	}
	m.pendingMu.Unlock()

	n := 0
	for _, t := range failed {
		if t.Completed() {
			continue
		}
		n++
		t.Fail(ErrShutdown)
		metrics.RecordCompleted(false)
	}
	return n
}

func (m *Manager) thresholdReached(ctx context.Context) bool {
	if m.settings.DispatchAfter <= 0 || len(m.activeLanes()) == 0 {
		return false
	}
	return m.queue.Len(ctx) >= m.settings.DispatchAfter
}

// release drains the queue unless a validator vetoes the probe request.
func (m *Manager) release(ctx context.Context, reason string) {
	if !m.enabled || len(m.activeLanes()) == 0 {
		return
	}

	probe := request.NewTrack(request.Payload{request.KeyReleaseRequest: true}, nil)
	for _, v := range m.validators {
		queue, _ := v.ShouldQueue(probe)
		if queue || v.ShouldDrop(probe) || v.ShouldPurge(probe) {
			m.log.Debug().Str("validator", v.ID()).Str("reason", reason).Msg("Queue release deferred by validator")
			return
		}
	}

	if m.queue.Len(ctx) == 0 {
		return
	}
	m.log.Info().Str("reason", reason).Int("batch_size", m.settings.BatchSize).Msg("Releasing queued dispatches")
	m.queue.ReleaseAll(ctx, func(tracks []*request.Track) {
		for _, t := range tracks {
			m.hold(t)
		}
		if !m.serial.Submit(func(ctx context.Context) {
			m.replay(ctx, tracks)
		}) {
			for _, t := range tracks {
				m.reject(t, ErrShutdown)
			}
		}
	})
}

// replay re-admits released tracks in FIFO order and delivers the ones that
// pass together, so batch-capable dispatchers see them as batches.
func (m *Manager) replay(ctx context.Context, tracks []*request.Track) {
	admitted := make([]*request.Track, 0, len(tracks))
	for _, t := range tracks {
		if m.admit(ctx, t, true) {
			admitted = append(admitted, t)
		}
	}
	if len(admitted) > 0 {
		m.deliver(admitted, m.activeLanes())
	}
}

func (m *Manager) purgeQueued(ctx context.Context) {
	if len(m.validators) == 0 {
		return
	}
	validators := m.validators
	m.queue.Purge(ctx, func(t *request.Track) bool {
		for _, v := range validators {
			if v.ShouldPurge(t) {
				return true
			}
		}
		return false
	})
}
