// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package connectivity

import (
	"context"
	"time"
)

// Monitor polls the provider of a Module. It implements suture.Service.
type Monitor struct {
	module   *Module
	interval time.Duration
}

// NewMonitor creates a monitor polling every interval.
func NewMonitor(m *Module, interval time.Duration) *Monitor {
	return &Monitor{module: m, interval: interval}
}

// String implements fmt.Stringer for suture service naming.
func (mon *Monitor) String() string {
	return "connectivity-monitor"
}

// Serve polls until ctx is canceled.
func (mon *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(mon.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			mon.module.Check(ctx)
		}
	}
}
