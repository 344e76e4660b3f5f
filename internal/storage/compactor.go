// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package storage

import (
	"context"
	"time"

	"github.com/tomtom215/beacon/internal/logging"
)

// Compactor periodically runs value log GC on a BadgerBackend.
// It implements suture.Service.
type Compactor struct {
	backend  *BadgerBackend
	interval time.Duration
}

// NewCompactor creates a compactor for backend.
func NewCompactor(backend *BadgerBackend) *Compactor {
	return &Compactor{
		backend:  backend,
		interval: backend.config.GCInterval,
	}
}

// String names the service in supervisor logs.
func (c *Compactor) String() string {
	return "storage-compactor"
}

// Serve runs until ctx is canceled.
func (c *Compactor) Serve(ctx context.Context) error {
	if c.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.compact()
		}
	}
}

func (c *Compactor) compact() {
	start := time.Now()
	runs, err := c.backend.RunGC()
	if err != nil {
		logging.Warn().Err(err).Msg("Blob store GC failed")
		return
	}
	if runs > 0 {
		storageGCRuns.Add(float64(runs))
		logging.Debug().Int("rewrites", runs).Dur("duration", time.Since(start)).Msg("Blob store GC complete")
	}
}
