// Beacon - Telemetry Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beacon

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handlers into a Chi router.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router. A nil middleware uses the defaults.
func NewRouter(handler *Handler, middleware *Middleware) *Router {
	if middleware == nil {
		middleware = NewMiddleware(DefaultMiddlewareConfig())
	}
	return &Router{handler: handler, middleware: middleware}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(AccessLog())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics())
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/instances", router.handler.Instances)
		r.Route("/instances/{instance}", func(r chi.Router) {
			r.Post("/track", router.handler.Track)
			r.Put("/trace", router.handler.JoinTrace)
			r.Delete("/trace", router.handler.LeaveTrace)
			r.Get("/consent", router.handler.GetConsent)
			r.Put("/consent", router.handler.SetConsent)
			r.Get("/settings", router.handler.Settings)
			r.Get("/queue", router.handler.Queue)
			r.Post("/queue/release", router.handler.ReleaseQueue)
			r.Get("/datalayer", router.handler.GetDataLayer)
			r.Put("/datalayer", router.handler.AddDataLayer)
			r.Delete("/datalayer/{key}", router.handler.DeleteDataLayer)
		})
	})

	return r
}
