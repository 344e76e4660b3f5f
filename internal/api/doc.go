// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

/*
Package api exposes the pipeline registry over HTTP using the Chi router.

# Endpoints

Health and metrics:

	GET  /health/live                         process is up
	GET  /health/ready                        at least one instance is registered
	GET  /metrics                             Prometheus exposition

Instance API (rate limited per client IP):

	GET    /api/v1/instances                        registered instance names
	POST   /api/v1/instances/{instance}/track       submit an event
	PUT    /api/v1/instances/{instance}/trace       join a trace
	DELETE /api/v1/instances/{instance}/trace       leave the trace
	GET    /api/v1/instances/{instance}/consent     consent preferences
	PUT    /api/v1/instances/{instance}/consent     record a consent decision
	GET    /api/v1/instances/{instance}/settings    merged policy settings
	GET    /api/v1/instances/{instance}/queue       queue length
	POST   /api/v1/instances/{instance}/queue/release
	GET    /api/v1/instances/{instance}/datalayer   persistent data layer
	PUT    /api/v1/instances/{instance}/datalayer   add data layer values
	DELETE /api/v1/instances/{instance}/datalayer/{key}

Responses use a common envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "...", "message": "..."}}

A track request with "wait": true blocks until the request completes and
reports the aggregate outcome. Otherwise the request UUID is returned with
202 Accepted.
*/
package api
