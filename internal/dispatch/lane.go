// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatch

import (
	"context"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/metrics"
	"github.com/tomtom215/beacon/internal/module"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
)

// lane delivers requests to one dispatcher in the order they were accepted.
type lane struct {
	dispatcher module.Dispatcher
	breaker    *gobreaker.CircuitBreaker[map[string]any]
	exec       *rwqueue.Serial
	timeout    time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
}

func startLane(d module.Dispatcher, cfg Config) *lane {
	ctx, cancel := context.WithCancel(context.Background())
	l := &lane{
		dispatcher: d,
		breaker:    newBreaker(d.ID(), cfg.Breaker),
		exec: rwqueue.NewScopedSerial("dispatcher-"+d.ID(), func(ctx context.Context) context.Context {
			return logging.ContextWithInstance(ctx, cfg.Instance)
		}),
		timeout:    cfg.DispatchTimeout,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(l.done)
		_ = l.exec.Serve(ctx)
	}()
	return l
}

func (l *lane) batches() bool {
	_, ok := l.dispatcher.(module.BatchDispatcher)
	return ok
}

// deliver queues t for delivery and calls done after the response has been
// appended.
func (l *lane) deliver(t *request.Track, done func(*request.Track)) {
	if !l.exec.Submit(func(ctx context.Context) {
		t.AppendResponse(l.dispatch(ctx, []*request.Track{t}))
		done(t)
	}) {
		l.abandon([]*request.Track{t}, done)
	}
}

// deliverBatch queues batch for a single DispatchBatch call. A batch of one
// goes through Dispatch.
func (l *lane) deliverBatch(batch []*request.Track, done func(*request.Track)) {
	if len(batch) == 1 {
		l.deliver(batch[0], done)
		return
	}
	if !l.exec.Submit(func(ctx context.Context) {
		resp := l.dispatch(ctx, batch)
		for _, t := range batch {
			t.AppendResponse(resp)
			done(t)
		}
	}) {
		l.abandon(batch, done)
	}
}

func (l *lane) abandon(tracks []*request.Track, done func(*request.Track)) {
	for _, t := range tracks {
		t.AppendResponse(request.ModuleResponse{Module: l.dispatcher.ID(), Err: ErrShutdown})
		done(t)
	}
}

func (l *lane) dispatch(ctx context.Context, tracks []*request.Track) request.ModuleResponse {
	id := l.dispatcher.ID()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	info, err := l.breaker.Execute(func() (info map[string]any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrDispatcherPanic, r)
			}
		}()
		if len(tracks) == 1 {
			return l.dispatcher.Dispatch(ctx, tracks[0])
		}
		return l.dispatcher.(module.BatchDispatcher).DispatchBatch(ctx, tracks)
	})
	metrics.RecordDispatch(id, time.Since(start), err)

	log := logging.Ctx(ctx)
	if err != nil {
		log.Error().Err(err).
			Str("dispatcher", id).
			Str("uuid", tracks[0].UUID()).
			Int("batch", len(tracks)).
			Msg("Dispatch failed")
		return request.ModuleResponse{Module: id, Success: false, Info: info, Err: err}
	}
	log.Debug().Str("dispatcher", id).Str("uuid", tracks[0].UUID()).Int("batch", len(tracks)).
		Msg("Dispatch succeeded")
	return request.ModuleResponse{Module: id, Success: true, Info: info}
}

// stop waits up to grace for queued deliveries, then stops the lane.
func (l *lane) stop(grace time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_ = l.exec.Do(ctx, func(context.Context) {})
	if dropped := l.exec.Stop(); dropped > 0 {
		logging.Warn().Str("dispatcher", l.dispatcher.ID()).Int("dropped", dropped).
			Msg("Dispatcher lane stopped with pending deliveries")
	}
	l.cancel()
	<-l.done
}
