// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	correlationKey ctxKey = iota
	instanceKey
)

// GenerateCorrelationID returns an 8 character id.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID tags ctx with a request correlation id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFromContext returns the correlation id of ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey).(string)
	return id
}

// ContextWithInstance tags ctx with a pipeline instance name.
func ContextWithInstance(ctx context.Context, instance string) context.Context {
	return context.WithValue(ctx, instanceKey, instance)
}

// Ctx returns the global logger with the correlation_id and instance fields
// carried by ctx.
//
//	logging.Ctx(ctx).Info().Msg("Released queued track requests")
func Ctx(ctx context.Context) *zerolog.Logger {
	c := current().With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	if instance, _ := ctx.Value(instanceKey).(string); instance != "" {
		c = c.Str("instance", instance)
	}
	l := c.Logger()
	return &l
}

// WithComponent returns a child of the global logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return current().With().Str("component", component).Logger()
}
