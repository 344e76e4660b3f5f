// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Track lifecycle
	TracksSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_tracks_submitted_total",
			Help: "Total number of track requests submitted",
		},
	)

	TracksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_tracks_dropped_total",
			Help: "Total number of track requests dropped by a validator",
		},
		[]string{"validator"},
	)

	TracksQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_tracks_queued_total",
			Help: "Total number of track requests deferred to the durable queue",
		},
		[]string{"reason"},
	)

	TracksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_tracks_completed_total",
			Help: "Total number of track completions by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Durable queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_queue_depth",
			Help: "Current number of entries in the durable queue",
		},
		[]string{"instance"},
	)

	QueueReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beacon_queue_released_total",
			Help: "Total number of queued entries resubmitted by a release",
		},
	)

	QueuePurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_queue_purged_total",
			Help: "Total number of queued entries discarded",
		},
		[]string{"cause"}, // "count", "age", "validator", "clear"
	)

	// Dispatch
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_dispatch_total",
			Help: "Total number of dispatch attempts by dispatcher and outcome",
		},
		[]string{"dispatcher", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_dispatch_duration_seconds",
			Help:    "Duration of dispatcher deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dispatcher"},
	)

	DispatcherBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_dispatcher_breaker_state",
			Help: "Circuit breaker state per dispatcher (0 closed, 1 half-open, 2 open)",
		},
		[]string{"dispatcher"},
	)

	// Remote policy
	PolicyFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_policy_fetches_total",
			Help: "Total number of remote policy fetch attempts by outcome",
		},
		[]string{"outcome"}, // "fetched", "not_modified", "invalid", "error"
	)

	// Connectivity
	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_connectivity_online",
			Help: "1 when the connectivity provider reports the network as reachable",
		},
	)

	// HTTP ingest API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "beacon_http_active_requests",
			Help: "HTTP requests currently being served",
		},
	)
)

// RecordSubmitted records an accepted track request.
func RecordSubmitted() {
	TracksSubmitted.Inc()
}

// RecordDropped records a request dropped by validator.
func RecordDropped(validator string) {
	TracksDropped.WithLabelValues(validator).Inc()
}

// RecordQueued records a deferred request.
func RecordQueued(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	TracksQueued.WithLabelValues(reason).Inc()
}

// RecordCompleted records a fired completion.
func RecordCompleted(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	TracksCompleted.WithLabelValues(outcome).Inc()
}

// SetQueueDepth updates the queue depth gauge for an instance.
func SetQueueDepth(instance string, depth int) {
	QueueDepth.WithLabelValues(instance).Set(float64(depth))
}

// RecordReleased records entries resubmitted by a release.
func RecordReleased(count int) {
	QueueReleased.Add(float64(count))
}

// RecordPurged records entries discarded for cause.
func RecordPurged(cause string, count int) {
	if count <= 0 {
		return
	}
	QueuePurged.WithLabelValues(cause).Add(float64(count))
}

// RecordDispatch records a delivery attempt.
func RecordDispatch(dispatcher string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DispatchTotal.WithLabelValues(dispatcher, outcome).Inc()
	DispatchDuration.WithLabelValues(dispatcher).Observe(duration.Seconds())
}

// SetBreakerState records a dispatcher circuit breaker state.
func SetBreakerState(dispatcher string, state int) {
	DispatcherBreakerState.WithLabelValues(dispatcher).Set(float64(state))
}

// RecordPolicyFetch records a remote policy fetch outcome.
func RecordPolicyFetch(outcome string) {
	PolicyFetches.WithLabelValues(outcome).Inc()
}

// SetOnline records the connectivity state.
func SetOnline(online bool) {
	if online {
		ConnectivityOnline.Set(1)
		return
	}
	ConnectivityOnline.Set(0)
}

// RecordAPIRequest records a served HTTP request. route is the router
// pattern, not the raw path.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
