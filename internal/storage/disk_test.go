// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/beacon/internal/rwqueue"
)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type otherRecord struct {
	Label string `json:"label"`
}

func createTestConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "blobs")
	cfg.SyncWrites = false
	return cfg
}

func setupStorage(t *testing.T, backend Backend, module string) (*DiskStorage, *rwqueue.Queue) {
	t.Helper()
	rw := rwqueue.New("storage-test")
	t.Cleanup(rw.Close)
	return NewDiskStorage(backend, Namespace("acct", "main", "dev"), module, rw), rw
}

func TestSaveRetrieve(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "datalayer")
	ctx := context.Background()

	done := make(chan error, 1)
	ds.Save(ctx, "data", &testRecord{Name: "a", Count: 3}, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var got testRecord
	if !ds.Retrieve(ctx, "data", &got) {
		t.Fatal("expected Retrieve to find saved blob")
	}
	if got.Name != "a" || got.Count != 3 {
		t.Errorf("Retrieve = %+v, want {a 3}", got)
	}
}

func TestRetrieveAfterAsyncSave(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "queue")
	ctx := context.Background()

	ds.Save(ctx, "q", []testRecord{{Name: "x"}}, nil)

	var got []testRecord
	if !ds.Retrieve(ctx, "q", &got) {
		t.Fatal("Retrieve did not observe the preceding Save")
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want 1", len(got))
	}
}

func TestRetrieveAbsentIsNoData(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "queue")

	var got []testRecord
	if ds.Retrieve(context.Background(), "missing", &got) {
		t.Error("expected no data for absent blob")
	}
}

func TestRetrieveCorruptIsNoData(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	ds, _ := setupStorage(t, backend, "queue")
	if err := backend.Put(ds.Key("q"), []byte("{not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got []testRecord
	if ds.Retrieve(context.Background(), "q", &got) {
		t.Error("expected no data for corrupt blob")
	}
}

func TestRetrieveSchemaMismatchIsNoData(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "queue")
	ctx := context.Background()
	if err := ds.SaveSync(ctx, "q", &testRecord{Name: "a"}); err != nil {
		t.Fatalf("SaveSync failed: %v", err)
	}

	var got otherRecord
	if ds.Retrieve(ctx, "q", &got) {
		t.Error("expected schema mismatch to report no data")
	}
}

func TestRetrieveNewerEnvelopeIsNoData(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	ds, _ := setupStorage(t, backend, "queue")
	blob := []byte(`{"version":99,"schema":"storage.testRecord","data":{"name":"a"}}`)
	if err := backend.Put(ds.Key("q"), blob); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got testRecord
	if ds.Retrieve(context.Background(), "q", &got) {
		t.Error("expected newer envelope version to report no data")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "queue")
	ctx := context.Background()
	_ = ds.SaveSync(ctx, "q", &testRecord{Name: "a"})

	done := make(chan error, 1)
	ds.Delete(ctx, "q", func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var got testRecord
	if ds.Retrieve(ctx, "q", &got) {
		t.Error("expected no data after delete")
	}
}

func TestAppend(t *testing.T) {
	t.Parallel()

	ds, rw := setupStorage(t, NewMemoryBackend(), "queue")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ds.Append(ctx, "q", testRecord{Name: "r", Count: i}, nil)
	}
	_ = rw.Flush()

	var got []testRecord
	if !ds.Retrieve(ctx, "q", &got) {
		t.Fatal("expected appended array")
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, r := range got {
		if r.Count != i {
			t.Errorf("record %d count = %d, want %d", i, r.Count, i)
		}
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	rw := rwqueue.New("shared")
	defer rw.Close()
	a := NewDiskStorage(backend, Namespace("acct", "main", "dev"), "queue", rw)
	b := NewDiskStorage(backend, Namespace("acct", "main", "prod"), "queue", rw)
	ctx := context.Background()

	_ = a.SaveSync(ctx, "q", &testRecord{Name: "dev"})
	_ = b.SaveSync(ctx, "q", &testRecord{Name: "prod"})

	var got testRecord
	a.Retrieve(ctx, "q", &got)
	if got.Name != "dev" {
		t.Errorf("namespace dev read %q", got.Name)
	}
	b.Retrieve(ctx, "q", &got)
	if got.Name != "prod" {
		t.Errorf("namespace prod read %q", got.Name)
	}
}

func TestNilValue(t *testing.T) {
	t.Parallel()

	ds, _ := setupStorage(t, NewMemoryBackend(), "queue")
	if err := ds.SaveSync(context.Background(), "q", nil); err != ErrNilValue {
		t.Errorf("SaveSync(nil) = %v, want ErrNilValue", err)
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	cfg := createTestConfig(t)
	ctx := context.Background()

	backend, err := OpenBadger(&cfg)
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	ds, _ := setupStorage(t, backend, "queue")
	if err := ds.SaveSync(ctx, "q", []testRecord{{Name: "a"}, {Name: "b"}}); err != nil {
		t.Fatalf("SaveSync failed: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenBadger(&cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	ds2, _ := setupStorage(t, reopened, "queue")
	var got []testRecord
	if !ds2.Retrieve(ctx, "q", &got) {
		t.Fatal("expected data after reopen")
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("got %+v after reopen", got)
	}
}

func TestBadgerInMemory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.Path = ""
	backend, err := OpenBadger(&cfg)
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer backend.Close()

	if _, err := backend.Get("missing"); err != ErrNotFound {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
	if err := backend.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, err := backend.Get("k")
	if err != nil || string(v) != "v" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if runs, err := backend.RunGC(); err != nil || runs != 0 {
		t.Errorf("RunGC on in-memory = %d, %v", runs, err)
	}
}

func TestClosedBackend(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	ds, _ := setupStorage(t, backend, "queue")
	if !ds.CanWrite() {
		t.Error("expected CanWrite before close")
	}
	_ = backend.Close()
	if ds.CanWrite() {
		t.Error("expected CanWrite false after close")
	}
	if err := ds.SaveSync(context.Background(), "q", &testRecord{}); err == nil {
		t.Error("expected error saving to closed backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"in memory without path", func(c *Config) { c.Path = ""; c.InMemory = true }, false},
		{"missing path", func(c *Config) { c.Path = "" }, true},
		{"tiny memtable", func(c *Config) { c.MemTableSize = 1024 }, true},
		{"bad gc ratio", func(c *Config) { c.GCRatio = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompactorStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.InMemory = true
	cfg.GCInterval = 10 * time.Millisecond
	backend, err := OpenBadger(&cfg)
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewCompactor(backend).Serve(ctx); err == nil {
		t.Error("expected context error from Serve")
	}
}
