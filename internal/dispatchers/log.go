// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package dispatchers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/beacon/internal/logging"
	"github.com/tomtom215/beacon/internal/request"
)

// LogID identifies the log dispatcher.
const LogID = "log"

// Log writes every payload to the structured log.
type Log struct {
	log zerolog.Logger
}

// NewLog creates a log dispatcher writing to the component logger.
func NewLog() *Log {
	return &Log{log: logging.WithComponent("dispatch-log")}
}

// NewLogWithLogger creates a log dispatcher writing to l.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLogWithLogger(l zerolog.Logger) *Log {
	return &Log{log: l}
}

// ID implements module.Module.
func (d *Log) ID() string { return LogID }

// Enable implements module.Module.
func (d *Log) Enable(context.Context, request.Enable) error { return nil }

// Disable implements module.Module.
func (d *Log) Disable(context.Context, request.Disable) {}

// Dispatch logs the payload at info level.
func (d *Log) Dispatch(_ context.Context, t *request.Track) (map[string]any, error) {
	d.log.Info().
		Str("uuid", t.UUID()).
		Str("event", t.Event()).
		Interface("payload", map[string]any(t.Payload())).
		Msg("Track request")
	return nil, nil
}
