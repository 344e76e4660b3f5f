// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package datalayer

import (
	"context"
	"maps"
	"time"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/request"
	"github.com/tomtom215/beacon/internal/rwqueue"
	"github.com/tomtom215/beacon/internal/storage"
)

// ModuleID identifies the data layer module and its storage blob.
const ModuleID = "datalayer"

// DefaultSessionLength is how long session data lives.
const DefaultSessionLength = 30 * time.Minute

// Payload keys contributed on every track.
const (
	KeyTimestamp = "timestamp"
)

type expiryKind int

const (
	kindForever expiryKind = iota
	kindSession
	kindUntilRestart
	kindFixed
)

// Expiry controls how long a value lives.
type Expiry struct {
	kind  expiryKind
	until time.Time
	after time.Duration
}

// Forever keeps a value until it is deleted.
func Forever() Expiry { return Expiry{kind: kindForever} }

// Session keeps a value for the session length.
func Session() Expiry { return Expiry{kind: kindSession} }

// UntilRestart keeps a value in memory only.
func UntilRestart() Expiry { return Expiry{kind: kindUntilRestart} }

// After keeps a value for d.
func After(d time.Duration) Expiry { return Expiry{kind: kindFixed, after: d} }

// Until keeps a value until t.
func Until(t time.Time) Expiry { return Expiry{kind: kindFixed, until: t} }

// Item is a persisted value.
type Item struct {
	Key     string    `json:"key"`
	Value   any       `json:"value"`
	Expires time.Time `json:"expires"`
}

func (i Item) expired(now time.Time) bool {
	return !i.Expires.IsZero() && !now.Before(i.Expires)
}

// DataLayer is the per-instance data store. It implements module.Collector.
type DataLayer struct {
	store         *storage.DiskStorage
	rw            *rwqueue.Queue
	static        map[string]any
	sessionLength time.Duration
	now           func() time.Time

	// Guarded by rw.
	items   map[string]Item
	restart map[string]any
}

// New creates a data layer. static values (account, profile, ...) are
// returned with every read and cannot be deleted.
func New(store *storage.DiskStorage, rw *rwqueue.Queue, static map[string]any) *DataLayer {
	return &DataLayer{
		store:         store,
		rw:            rw,
		static:        maps.Clone(static),
		sessionLength: DefaultSessionLength,
		now:           time.Now,
		items:         make(map[string]Item),
		restart:       make(map[string]any),
	}
}

// SetClock overrides the time source. Intended for tests.
func (d *DataLayer) SetClock(now func() time.Time) {
	d.now = now
}

// SetSessionLength changes the lifetime of session data written afterwards.
func (d *DataLayer) SetSessionLength(length time.Duration) {
	d.rw.WriteSync(context.Background(), func(context.Context) {
		d.sessionLength = length
	})
}

// ID implements module.Module.
func (d *DataLayer) ID() string { return ModuleID }

// Enable loads persisted values.
func (d *DataLayer) Enable(ctx context.Context, _ request.Enable) error {
	d.rw.WriteSync(ctx, func(ctx context.Context) {
		var stored []Item
		if !d.store.Retrieve(ctx, "", &stored) {
			return
		}
		now := d.now()
		for _, item := range stored {
			if !item.expired(now) {
				d.items[item.Key] = item
			}
		}
	})
	return nil
}

// Disable implements module.Module.
func (d *DataLayer) Disable(context.Context, request.Disable) {}

// Add stores data with the given expiry.
func (d *DataLayer) Add(ctx context.Context, data map[string]any, expiry Expiry) {
	if len(data) == 0 {
		return
	}
	data = maps.Clone(data)
	d.rw.Write(ctx, func(ctx context.Context) {
		if expiry.kind == kindUntilRestart {
			maps.Copy(d.restart, data)
			for k := range data {
				delete(d.items, k)
			}
			d.persist(ctx)
			return
		}

		expires := d.expiresAt(expiry)
		for k, v := range data {
			delete(d.restart, k)
			d.items[k] = Item{Key: k, Value: v, Expires: expires}
		}
		d.persist(ctx)
	})
}

// Delete removes keys.
func (d *DataLayer) Delete(ctx context.Context, keys ...string) {
	d.rw.Write(ctx, func(ctx context.Context) {
		for _, k := range keys {
			delete(d.items, k)
			delete(d.restart, k)
		}
		d.persist(ctx)
	})
}

// DeleteAll removes every non-static value.
func (d *DataLayer) DeleteAll(ctx context.Context) {
	d.rw.Write(ctx, func(ctx context.Context) {
		clear(d.items)
		clear(d.restart)
		d.persist(ctx)
	})
}

// All returns every live value.
func (d *DataLayer) All(ctx context.Context) map[string]any {
	return rwqueue.Get(d.rw, ctx, func(context.Context) map[string]any {
		now := d.now()
		out := make(map[string]any, len(d.static)+len(d.items)+len(d.restart))
		for k, item := range d.items {
			if !item.expired(now) {
				out[k] = item.Value
			}
		}
		maps.Copy(out, d.restart)
		maps.Copy(out, d.static)
		return out
	})
}

// Data implements module.Collector: every live value plus timestamps.
func (d *DataLayer) Data(ctx context.Context) map[string]any {
	data := d.All(ctx)
	now := d.now().UTC()
	data[request.KeyTimestampUnix] = now.Unix()
	data[KeyTimestamp] = now.Format(time.RFC3339)
	return data
}

// JoinTrace adds trace_id to every subsequent payload for the session.
func (d *DataLayer) JoinTrace(ctx context.Context, id string) {
	d.Add(ctx, map[string]any{request.KeyTraceID: id}, Session())
	logging.Info().Str("trace_id", id).Msg("Joined trace")
}

// LeaveTrace removes trace_id.
func (d *DataLayer) LeaveTrace(ctx context.Context) {
	d.Delete(ctx, request.KeyTraceID)
	logging.Info().Msg("Left trace")
}

func (d *DataLayer) expiresAt(e Expiry) time.Time {
	switch e.kind {
	case kindSession:
		return d.now().Add(d.sessionLength)
	case kindFixed:
		if !e.until.IsZero() {
			return e.until
		}
		return d.now().Add(e.after)
	default:
		return time.Time{}
	}
}

// persist drops expired items and saves the rest. Must run inside a write.
func (d *DataLayer) persist(ctx context.Context) {
	now := d.now()
	items := make([]Item, 0, len(d.items))
	for k, item := range d.items {
		if item.expired(now) {
			delete(d.items, k)
			continue
		}
		items = append(items, item)
	}
	d.store.Save(ctx, "", items, func(err error) {
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to persist data layer")
		}
	})
}
