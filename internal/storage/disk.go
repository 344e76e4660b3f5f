// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/rwqueue"
)

// EnvelopeVersion is the current blob envelope version.
const EnvelopeVersion = 1

// Completion is invoked once a write has been applied (or has failed).
type Completion func(err error)

// ErrNilValue is reported when Save or Append is called with a nil value.
var ErrNilValue = errors.New("storage: nil value")

type envelope struct {
	Version int             `json:"version"`
	Schema  string          `json:"schema"`
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// Namespace returns the instance namespace for account, profile and environment.
func Namespace(account, profile, environment string) string {
	return account + "." + profile + "." + environment
}

// DiskStorage persists named blobs for a single module of a single pipeline instance.
type DiskStorage struct {
	backend   Backend
	namespace string
	module    string
	rw        *rwqueue.Queue
}

// NewDiskStorage creates module-scoped storage. The rw queue is normally shared
// by every DiskStorage of a pipeline instance.
func NewDiskStorage(backend Backend, namespace, module string, rw *rwqueue.Queue) *DiskStorage {
	return &DiskStorage{
		backend:   backend,
		namespace: namespace,
		module:    module,
		rw:        rw,
	}
}

// Module returns the module name this storage is scoped to.
func (d *DiskStorage) Module() string {
	return d.module
}

// Key returns the backend key for a blob name.
func (d *DiskStorage) Key(name string) string {
	if name == "" {
		name = d.module
	}
	return d.namespace + "/" + d.module + "/" + name
}

// CanWrite reports whether the backend still accepts writes.
func (d *DiskStorage) CanWrite() bool {
	_, err := d.backend.Get(d.Key("\x00probe"))
	return !errors.Is(err, ErrClosed)
}

// Save overwrites the named blob with value. The write happens on the shared
// writer context; done (optional) is called afterwards.
func (d *DiskStorage) Save(ctx context.Context, name string, value any, done Completion) {
	if value == nil {
		finish(done, ErrNilValue)
		return
	}
	d.rw.Write(ctx, func(context.Context) {
		finish(done, d.put(name, value))
	})
}

// SaveSync is Save that waits for the write to be applied.
func (d *DiskStorage) SaveSync(ctx context.Context, name string, value any) error {
	if value == nil {
		return ErrNilValue
	}
	var err error
	d.rw.WriteSync(ctx, func(context.Context) {
		err = d.put(name, value)
	})
	return err
}

// Retrieve decodes the named blob into out, which must be a non-nil pointer.
// It returns false when the blob is absent, corrupt, or tagged with a
// different schema; none of these are errors.
func (d *DiskStorage) Retrieve(ctx context.Context, name string, out any) bool {
	var found bool
	d.rw.Read(ctx, func(context.Context) {
		found = d.get(name, out)
	})
	return found
}

// Delete removes the named blob.
func (d *DiskStorage) Delete(ctx context.Context, name string, done Completion) {
	d.rw.Write(ctx, func(context.Context) {
		err := d.backend.Delete(d.Key(name))
		recordOperation("delete", err)
		finish(done, err)
	})
}

// Append adds item to the JSON array stored in the named blob, creating the
// array when the blob is absent or unreadable.
func (d *DiskStorage) Append(ctx context.Context, name string, item any, done Completion) {
	if item == nil {
		finish(done, ErrNilValue)
		return
	}
	d.rw.Write(ctx, func(context.Context) {
		finish(done, d.appendItem(name, item))
	})
}

func (d *DiskStorage) appendItem(name string, item any) error {
	encoded, err := json.Marshal(item)
	if err != nil {
		recordOperation("append", err)
		return fmt.Errorf("marshal item: %w", err)
	}

	schema := "[]" + schemaOf(item)
	var items []json.RawMessage
	if raw, ok := d.load(name, schema); ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			items = nil
		}
	}
	items = append(items, encoded)

	data, err := json.Marshal(items)
	if err != nil {
		recordOperation("append", err)
		return fmt.Errorf("marshal items: %w", err)
	}
	err = d.write(name, schema, data)
	recordOperation("append", err)
	return err
}

func (d *DiskStorage) put(name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		recordOperation("save", err)
		return fmt.Errorf("marshal %s: %w", d.Key(name), err)
	}
	err = d.write(name, schemaOf(value), data)
	recordOperation("save", err)
	return err
}

func (d *DiskStorage) write(name, schema string, data []byte) error {
	blob, err := json.Marshal(&envelope{
		Version: EnvelopeVersion,
		Schema:  schema,
		SavedAt: time.Now().UTC(),
		Data:    data,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := d.backend.Put(d.Key(name), blob); err != nil {
		logging.Warn().Err(err).Str("key", d.Key(name)).Msg("Blob write failed")
		return fmt.Errorf("put %s: %w", d.Key(name), err)
	}
	return nil
}

func (d *DiskStorage) get(name string, out any) bool {
	raw, ok := d.load(name, schemaOf(out))
	if !ok {
		recordOperation("retrieve_miss", nil)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logging.Debug().Err(err).Str("key", d.Key(name)).Msg("Discarding undecodable blob")
		recordOperation("retrieve_corrupt", nil)
		return false
	}
	recordOperation("retrieve", nil)
	return true
}

// load returns the envelope payload for name if it matches schema.
func (d *DiskStorage) load(name, schema string) (json.RawMessage, bool) {
	blob, err := d.backend.Get(d.Key(name))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Debug().Err(err).Str("key", d.Key(name)).Msg("Blob read failed")
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		logging.Debug().Err(err).Str("key", d.Key(name)).Msg("Discarding corrupt blob envelope")
		return nil, false
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return nil, false
	}
	if env.Schema != schema {
		logging.Debug().
			Str("key", d.Key(name)).
			Str("stored", env.Schema).
			Str("requested", schema).
			Msg("Blob schema mismatch")
		return nil, false
	}
	return env.Data, true
}

// schemaOf returns the schema tag for a value: its dereferenced Go type.
func schemaOf(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return strings.TrimPrefix(t.String(), "*")
}

func finish(done Completion, err error) {
	if done != nil {
		done(err)
	}
}
