// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storageOperations counts blob operations by operation and outcome.
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_storage_operations_total",
		Help: "Total number of blob store operations",
	}, []string{"operation", "outcome"})

	// storageGCRuns counts value log GC rewrites.
	storageGCRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_storage_gc_rewrites_total",
		Help: "Total number of BadgerDB value log rewrites",
	})
)

func recordOperation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	storageOperations.WithLabelValues(op, outcome).Inc()
}
